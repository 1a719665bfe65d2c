package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"paygate/internal/auth"

	"go.uber.org/zap"
)

const (
	defaultMaxAttempts     = 3
	defaultQueueSize       = 256
	defaultWorkers         = 2
	defaultDeliveryTimeout = 10 * time.Second
	defaultBackoff         = 2 * time.Second
)

type ForwarderConfig struct {
	URL             string
	MaxAttempts     int
	QueueSize       int
	Workers         int
	DeliveryTimeout time.Duration
	Backoff         time.Duration // multiplied by the attempt number
}

// Forwarder delivers events to the merchant callback URL in the background. Delivery is
// best effort: events still queued when the forwarder stops are dropped.
type Forwarder struct {
	cfg    ForwarderConfig
	client *http.Client
	signer auth.Signer
	logger *zap.SugaredLogger
	queue  chan Event
	wg     sync.WaitGroup
}

// NewForwarder returns a forwarder; signer may be nil to send unsigned events.
func NewForwarder(cfg ForwarderConfig, signer auth.Signer, logger *zap.SugaredLogger) *Forwarder {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Forwarder{
		cfg:    cfg,
		client: &http.Client{},
		signer: signer,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (f *Forwarder) Start(ctx context.Context) {
	for i := 0; i < f.cfg.Workers; i++ {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-f.queue:
					if err := f.deliver(ctx, ev); err != nil {
						f.logger.Errorw("merchant callback delivery failed", "ref_id", ev.RefID, "event_id", ev.EventID, "err", err)
					}
				}
			}
		}()
	}
}

// Wait blocks until every worker has exited.
func (f *Forwarder) Wait() { f.wg.Wait() }

// Enqueue never blocks. It reports false when the queue is full and the event was dropped.
func (f *Forwarder) Enqueue(ev Event) bool {
	select {
	case f.queue <- ev:
		return true
	default:
		f.logger.Errorw("merchant callback queue full, dropping event", "ref_id", ev.RefID, "event_id", ev.EventID)
		return false
	}
}

func (f *Forwarder) deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if lastErr = f.post(ctx, ev, body); lastErr == nil {
			f.logger.Infow("merchant callback delivered", "ref_id", ev.RefID, "event_id", ev.EventID, "attempt", attempt)
			return nil
		}
		f.logger.Warnw("merchant callback attempt failed", "ref_id", ev.RefID, "attempt", attempt, "err", lastErr)

		if attempt == f.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * f.cfg.Backoff):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", f.cfg.MaxAttempts, lastErr)
}

func (f *Forwarder) post(ctx context.Context, ev Event, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.DeliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", ev.EventID)
	if f.signer != nil {
		tok, err := f.signer.Sign(ev.RefID, ev.EventID, body)
		if err != nil {
			return fmt.Errorf("sign event: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("merchant responded with http %d", resp.StatusCode)
	}
	return nil
}
