package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paygate/internal/domain/paymentsrepo"
	"paygate/internal/domain/storage"
	"paygate/internal/payments"

	"go.uber.org/zap"
)

const defaultPollTimeout = 10 * time.Second

// Gateways resolves the adapter for a provider.
type Gateways interface {
	Gateway(p payments.Provider) (payments.PaymentGateway, error)
}

// Notifier receives events after a status change has been committed.
type Notifier interface {
	Enqueue(ev Event) bool
}

type References interface {
	Next() (string, error)
}

type Deps struct {
	Repos       *storage.Repos
	Gateways    Gateways
	References  References
	Notifier    Notifier // optional
	Logger      *zap.SugaredLogger
	PollTimeout time.Duration
}

// Engine owns the payment lifecycle: creation, the callback and poll paths, and the single
// conditional write they share.
type Engine struct {
	payments    paymentsrepo.Store
	logs        paymentsrepo.LogsStore
	gateways    Gateways
	refs        References
	notifier    Notifier
	logger      *zap.SugaredLogger
	pollTimeout time.Duration
	now         func() time.Time
}

func NewEngine(d Deps) *Engine {
	if d.PollTimeout <= 0 {
		d.PollTimeout = defaultPollTimeout
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	return &Engine{
		payments:    d.Repos.Payments,
		logs:        d.Repos.PayLogs,
		gateways:    d.Gateways,
		refs:        d.References,
		notifier:    d.Notifier,
		logger:      d.Logger,
		pollTimeout: d.PollTimeout,
		now:         time.Now,
	}
}

// CreateOutcome is a persisted payment plus the provider hints the payer needs next.
type CreateOutcome struct {
	Payment         *paymentsrepo.Payment
	RedirectURL     string
	CustomerMessage string
}

var defaultCurrency = map[payments.Provider]string{
	payments.ProviderOPay:  "NGN",
	payments.ProviderMpesa: "KES",
	payments.ProviderNsano: "XOF",
}

// CreatePayment checks the reference, calls the provider and persists the payment only once
// the provider has accepted it.
func (e *Engine) CreatePayment(ctx context.Context, provider payments.Provider, intent payments.PaymentIntent) (*CreateOutcome, error) {
	if !provider.Valid() {
		return nil, payments.ErrUndeterminedProvider
	}
	gw, err := e.gateways.Gateway(provider)
	if err != nil {
		return nil, err
	}

	if intent.RefID == "" {
		if intent.RefID, err = e.refs.Next(); err != nil {
			return nil, err
		}
	}
	if intent.Currency == "" {
		intent.Currency = defaultCurrency[provider]
	}

	existing, err := e.payments.GetByRefID(ctx, intent.RefID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("ref_id %s: %w", intent.RefID, payments.ErrDuplicateReference)
	}

	res, err := gw.InitiatePayment(ctx, intent)
	if err != nil {
		e.logger.Warnw("provider rejected payment", "ref_id", intent.RefID, "provider", provider, "err", err)
		e.audit(ctx, intent.RefID, provider, paymentsrepo.LogError, map[string]string{"stage": "create", "error": err.Error()})
		return nil, err
	}
	if !res.Accepted {
		return nil, &payments.ProviderError{Provider: provider, Code: res.Code, Message: res.Message}
	}

	st := payments.MapStatus(res.NativeStatus)
	p := &paymentsrepo.Payment{
		RefID:        intent.RefID,
		Provider:     provider,
		Name:         intent.Name,
		PayerID:      intent.PayerID,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Contact:      res.Contact,
		State:        st.State(),
		NativeStatus: res.NativeStatus,
		Code:         st.Code,
		Msg:          st.Message,
		Details:      res.Details,
	}
	if res.ProviderOrderID != "" {
		p.ProviderOrderID = &res.ProviderOrderID
	}

	created, err := e.payments.Create(ctx, p)
	if err != nil {
		e.logger.Errorw("provider accepted payment but persisting it failed",
			"ref_id", p.RefID, "provider", provider, "provider_order_id", res.ProviderOrderID, "err", err)
		return nil, err
	}
	e.audit(ctx, p.RefID, provider, paymentsrepo.LogResponse, map[string]string{
		"provider_order_id": res.ProviderOrderID,
		"native_status":     res.NativeStatus,
		"code":              res.Code,
		"message":           res.Message,
	})

	e.logger.Infow("payment created", "ref_id", created.RefID, "provider", provider, "native_status", created.NativeStatus)
	return &CreateOutcome{
		Payment:         created,
		RedirectURL:     res.RedirectURL,
		CustomerMessage: res.CustomerMessage,
	}, nil
}

// PaymentStatus returns the payment, refreshing it from the provider while it is pending.
// A failed poll is not an error: the last known local state is returned.
func (e *Engine) PaymentStatus(ctx context.Context, refID string) (*paymentsrepo.Payment, error) {
	p, err := e.payments.GetByRefID(ctx, refID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("ref_id %s: %w", refID, payments.ErrNotFound)
	}
	if p.State != payments.StatePending && p.NativeStatus != "" {
		return p, nil
	}

	updated, err := e.poll(ctx, p)
	if err != nil {
		e.logger.Warnw("provider status poll failed, returning local state", "ref_id", refID, "provider", p.Provider, "err", err)
		return p, nil
	}
	return updated, nil
}

func (e *Engine) poll(ctx context.Context, p *paymentsrepo.Payment) (*paymentsrepo.Payment, error) {
	gw, err := e.gateways.Gateway(p.Provider)
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithTimeout(ctx, e.pollTimeout)
	defer cancel()

	q := payments.StatusQuery{RefID: p.RefID}
	if p.ProviderOrderID != nil {
		q.ProviderOrderID = *p.ProviderOrderID
	}
	res, err := gw.QueryStatus(pollCtx, q)
	if err != nil {
		return nil, err
	}

	updated, applied, err := e.Apply(ctx, p.RefID, paymentsrepo.StatusUpdate{
		ProviderOrderID: res.ProviderOrderID,
		NativeStatus:    res.NativeStatus,
		Details:         res.Details,
	})
	if err != nil {
		return nil, err
	}
	if applied && updated.State.Terminal() {
		e.notify(updated)
	}
	return updated, nil
}

// CallbackOutcome reports what an authenticated callback did. Applied is false for late or
// duplicate callbacks on terminal payments.
type CallbackOutcome struct {
	Payment *paymentsrepo.Payment
	Applied bool
}

// HandleCallback authenticates, parses and applies a provider callback.
func (e *Engine) HandleCallback(ctx context.Context, provider payments.Provider, raw []byte) (*CallbackOutcome, error) {
	gw, err := e.gateways.Gateway(provider)
	if err != nil {
		return nil, err
	}
	if err := gw.VerifyCallback(raw); err != nil {
		return nil, err
	}
	cb, err := gw.ParseCallback(raw)
	if err != nil {
		return nil, err
	}

	p, err := e.correlate(ctx, provider, cb)
	if err != nil {
		return nil, err
	}
	e.audit(ctx, p.RefID, provider, paymentsrepo.LogCallback, rawJSON(raw))

	updated, applied, err := e.Apply(ctx, p.RefID, paymentsrepo.StatusUpdate{
		ProviderOrderID: cb.ProviderOrderID,
		NativeStatus:    cb.NativeStatus,
		Details:         cb.Details,
	})
	if err != nil {
		return nil, err
	}
	if applied {
		e.notify(updated)
	} else {
		e.logger.Infow("callback for terminal payment ignored", "ref_id", p.RefID, "provider", provider, "state", updated.State)
	}
	return &CallbackOutcome{Payment: updated, Applied: applied}, nil
}

func (e *Engine) correlate(ctx context.Context, provider payments.Provider, cb payments.CallbackResult) (*paymentsrepo.Payment, error) {
	var (
		p   *paymentsrepo.Payment
		err error
	)
	switch {
	case cb.RefID != "":
		p, err = e.payments.GetByRefID(ctx, cb.RefID)
	case cb.ProviderOrderID != "":
		p, err = e.payments.GetByProviderRef(ctx, provider, cb.ProviderOrderID)
	default:
		return nil, fmt.Errorf("%s callback carries no reference: %w", provider, payments.ErrInvalidCallback)
	}
	if err != nil {
		return nil, err
	}
	if p == nil || p.Provider != provider {
		return nil, fmt.Errorf("%s callback ref=%q order=%q: %w", provider, cb.RefID, cb.ProviderOrderID, payments.ErrNotFound)
	}
	return p, nil
}

// Apply is the only place a payment's status changes. The store performs it as a conditional
// write, so a terminal payment is never modified.
func (e *Engine) Apply(ctx context.Context, refID string, u paymentsrepo.StatusUpdate) (*paymentsrepo.Payment, bool, error) {
	p, applied, err := e.payments.ApplyStatus(ctx, refID, u)
	if err != nil {
		return nil, false, err
	}
	if applied {
		e.logger.Infow("payment status applied", "ref_id", refID, "provider", p.Provider,
			"native_status", p.NativeStatus, "code", p.Code, "state", p.State)
	}
	return p, applied, nil
}

func (e *Engine) ListPayments(ctx context.Context, f paymentsrepo.ListFilter) ([]*paymentsrepo.Payment, int, error) {
	return e.payments.List(ctx, f)
}

// SweepResult summarises one SweepStale run.
type SweepResult struct {
	Checked  int `json:"checked"`
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}

// SweepStale polls pending payments that have not changed for olderThan.
func (e *Engine) SweepStale(ctx context.Context, olderThan time.Duration, limit int) (SweepResult, error) {
	var res SweepResult

	stale, err := e.payments.ListStalePending(ctx, e.now().Add(-olderThan), limit)
	if err != nil {
		return res, err
	}

	for _, p := range stale {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		updated, err := e.poll(ctx, p)
		if err != nil {
			res.Failed++
			e.logger.Warnw("sweep poll failed", "ref_id", p.RefID, "provider", p.Provider, "err", err)
			continue
		}
		if updated.State.Terminal() {
			res.Resolved++
		}
	}
	return res, nil
}

func (e *Engine) notify(p *paymentsrepo.Payment) {
	if e.notifier == nil {
		return
	}
	e.notifier.Enqueue(NewEvent(p))
}

// audit writes a payment_logs row. Failures are logged and never surface to the caller.
func (e *Engine) audit(ctx context.Context, refID string, provider payments.Provider, logType string, payload any) {
	if e.logs == nil {
		return
	}
	err := e.logs.InsertPaymentLog(ctx, paymentsrepo.PaymentLog{
		RefID:    refID,
		Provider: string(provider),
		LogType:  logType,
		Payload:  payload,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warnw("payment log write failed", "ref_id", refID, "log_type", logType, "err", err)
	}
}

// rawJSON keeps a valid JSON payload as is and falls back to the raw text.
func rawJSON(raw []byte) any {
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	return string(raw)
}
