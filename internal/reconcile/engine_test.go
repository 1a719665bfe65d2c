package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"paygate/internal/domain/paymentsrepo"
	"paygate/internal/domain/storage"
	"paygate/internal/payments"

	"github.com/shopspring/decimal"
)

// memStore mirrors the repository semantics, including the PENDING-only conditional write.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*paymentsrepo.Payment
	logs   []paymentsrepo.PaymentLog
	logErr error
	now    time.Time
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*paymentsrepo.Payment{}, now: time.Now()}
}

func clonePayment(p *paymentsrepo.Payment) *paymentsrepo.Payment {
	c := *p
	return &c
}

func (s *memStore) Create(_ context.Context, p *paymentsrepo.Payment) (*paymentsrepo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[p.RefID]; ok {
		return nil, payments.ErrDuplicateReference
	}
	s.nextID++
	c := clonePayment(p)
	c.ID = s.nextID
	c.CreatedAt, c.UpdatedAt = s.now, s.now
	s.rows[p.RefID] = c
	return clonePayment(c), nil
}

func (s *memStore) GetByRefID(_ context.Context, refID string) (*paymentsrepo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.rows[refID]; ok {
		return clonePayment(p), nil
	}
	return nil, nil
}

func (s *memStore) GetByProviderRef(_ context.Context, provider payments.Provider, ref string) (*paymentsrepo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		if p.Provider == provider && p.ProviderOrderID != nil && *p.ProviderOrderID == ref {
			return clonePayment(p), nil
		}
	}
	return nil, nil
}

func (s *memStore) ApplyStatus(_ context.Context, refID string, u paymentsrepo.StatusUpdate) (*paymentsrepo.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[refID]
	if !ok {
		return nil, false, payments.ErrNotFound
	}
	if p.State != payments.StatePending {
		return clonePayment(p), false, nil
	}
	if u.NativeStatus != "" {
		st := payments.MapStatus(u.NativeStatus)
		p.NativeStatus, p.Code, p.Msg, p.State = u.NativeStatus, st.Code, st.Message, st.State()
	}
	if u.ProviderOrderID != "" {
		id := u.ProviderOrderID
		p.ProviderOrderID = &id
	}
	merged, err := payments.MergeDetails(p.Details, u.Details)
	if err != nil {
		return nil, false, err
	}
	p.Details = merged
	p.UpdatedAt = s.now
	return clonePayment(p), true, nil
}

func (s *memStore) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]*paymentsrepo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*paymentsrepo.Payment
	for _, p := range s.rows {
		if p.State == payments.StatePending && p.UpdatedAt.Before(olderThan) {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) List(_ context.Context, f paymentsrepo.ListFilter) ([]*paymentsrepo.Payment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*paymentsrepo.Payment
	for _, p := range s.rows {
		if f.State == "" || string(p.State) == f.State {
			out = append(out, clonePayment(p))
		}
	}
	return out, len(out), nil
}

func (s *memStore) InsertPaymentLog(_ context.Context, l paymentsrepo.PaymentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logErr != nil {
		return s.logErr
	}
	s.logs = append(s.logs, l)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeGateway struct {
	name         payments.Provider
	initiateFunc func(payments.PaymentIntent) (payments.CreateResult, error)
	queryFunc    func(payments.StatusQuery) (payments.StatusResult, error)
	verifyFunc   func([]byte) error
	parseFunc    func([]byte) (payments.CallbackResult, error)
	queries      atomic.Int32
}

func (g *fakeGateway) Name() payments.Provider { return g.name }

func (g *fakeGateway) BuildCreateRequest(payments.PaymentIntent) (*payments.OutboundRequest, error) {
	return &payments.OutboundRequest{}, nil
}

func (g *fakeGateway) ParseCreateResponse(int, []byte) (payments.CreateResult, error) {
	return payments.CreateResult{}, nil
}

func (g *fakeGateway) InitiatePayment(_ context.Context, in payments.PaymentIntent) (payments.CreateResult, error) {
	return g.initiateFunc(in)
}

func (g *fakeGateway) QueryStatus(_ context.Context, q payments.StatusQuery) (payments.StatusResult, error) {
	g.queries.Add(1)
	if g.queryFunc == nil {
		return payments.StatusResult{}, errors.New("no status")
	}
	return g.queryFunc(q)
}

func (g *fakeGateway) VerifyCallback(raw []byte) error {
	if g.verifyFunc == nil {
		return nil
	}
	return g.verifyFunc(raw)
}

func (g *fakeGateway) ParseCallback(raw []byte) (payments.CallbackResult, error) {
	return g.parseFunc(raw)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Enqueue(ev Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return true
}

func (n *recordingNotifier) len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type seqRefs struct{ n int }

func (r *seqRefs) Next() (string, error) {
	r.n++
	return fmt.Sprintf("TXNGEN%d", r.n), nil
}

func acceptingOPay() *fakeGateway {
	return &fakeGateway{
		name: payments.ProviderOPay,
		initiateFunc: func(in payments.PaymentIntent) (payments.CreateResult, error) {
			url := "https://cashier.opay.test/" + in.RefID
			return payments.CreateResult{
				Accepted:        true,
				ProviderOrderID: "ORD-" + in.RefID,
				NativeStatus:    payments.NativeInitial,
				RedirectURL:     url,
				Contact:         "+2348012345678",
				Details:         &payments.OPayDetails{CashierURL: &url},
			}, nil
		},
	}
}

func newTestEngine(t *testing.T, gws ...payments.PaymentGateway) (*Engine, *memStore, *recordingNotifier) {
	t.Helper()
	store := newMemStore()
	mgr := payments.NewPaymentManager()
	for _, g := range gws {
		mgr.RegisterGateway(g)
	}
	n := &recordingNotifier{}
	e := NewEngine(Deps{
		Repos:       &storage.Repos{Payments: store, PayLogs: store},
		Gateways:    mgr,
		References:  &seqRefs{},
		Notifier:    n,
		PollTimeout: time.Second,
	})
	return e, store, n
}

func testIntent(ref string) payments.PaymentIntent {
	return payments.PaymentIntent{
		RefID:   ref,
		Name:    "John Doe",
		PayerID: "12345",
		Amount:  decimal.RequireFromString("1000.50"),
		Phone:   "08012345678",
	}
}

func TestCreatePaymentPersistsPending(t *testing.T) {
	e, store, _ := newTestEngine(t, acceptingOPay())

	out, err := e.CreatePayment(context.Background(), payments.ProviderOPay, testIntent("TXN100"))
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	p := out.Payment
	if p.RefID != "TXN100" {
		t.Errorf("ref_id = %q, want caller's value", p.RefID)
	}
	if p.State != payments.StatePending || p.Code != payments.CodePending {
		t.Errorf("state/code = %s/%s, want PENDING/03", p.State, p.Code)
	}
	if p.Currency != "NGN" {
		t.Errorf("currency = %q, want NGN default", p.Currency)
	}
	if p.ProviderOrderID == nil || *p.ProviderOrderID != "ORD-TXN100" {
		t.Errorf("provider_order_id = %v", p.ProviderOrderID)
	}
	if out.RedirectURL == "" {
		t.Error("redirect url missing")
	}
	if store.count() != 1 {
		t.Errorf("records = %d, want 1", store.count())
	}
	if len(store.logs) != 1 || store.logs[0].LogType != paymentsrepo.LogResponse {
		t.Errorf("logs = %+v, want one response log", store.logs)
	}
}

func TestCreatePaymentKeepsRecordWhenLogWriteFails(t *testing.T) {
	e, store, _ := newTestEngine(t, acceptingOPay())
	store.logErr = errors.New("payment_logs unavailable")

	out, err := e.CreatePayment(context.Background(), payments.ProviderOPay, testIntent("TXN101"))
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if out.Payment.State != payments.StatePending {
		t.Errorf("state = %s, want PENDING", out.Payment.State)
	}
	p, _ := store.GetByRefID(context.Background(), "TXN101")
	if p == nil {
		t.Fatal("accepted payment was not persisted")
	}
}

func TestCreatePaymentGeneratesReference(t *testing.T) {
	e, _, _ := newTestEngine(t, acceptingOPay())

	out, err := e.CreatePayment(context.Background(), payments.ProviderOPay, testIntent(""))
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if out.Payment.RefID != "TXNGEN1" {
		t.Errorf("ref_id = %q, want generated", out.Payment.RefID)
	}
}

func TestCreatePaymentDuplicateReference(t *testing.T) {
	gw := acceptingOPay()
	calls := 0
	inner := gw.initiateFunc
	gw.initiateFunc = func(in payments.PaymentIntent) (payments.CreateResult, error) {
		calls++
		return inner(in)
	}
	e, store, _ := newTestEngine(t, gw)
	ctx := context.Background()

	if _, err := e.CreatePayment(ctx, payments.ProviderOPay, testIntent("TXN1")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := e.CreatePayment(ctx, payments.ProviderOPay, testIntent("TXN1"))
	if !errors.Is(err, payments.ErrDuplicateReference) {
		t.Fatalf("err = %v, want ErrDuplicateReference", err)
	}
	if calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
	if store.count() != 1 {
		t.Errorf("records = %d, want 1", store.count())
	}
}

func TestCreatePaymentProviderRejectionPersistsNothing(t *testing.T) {
	gw := &fakeGateway{
		name: payments.ProviderOPay,
		initiateFunc: func(payments.PaymentIntent) (payments.CreateResult, error) {
			return payments.CreateResult{}, &payments.ProviderError{Provider: payments.ProviderOPay, Code: "02004", Message: "invalid merchant"}
		},
	}
	e, store, _ := newTestEngine(t, gw)

	_, err := e.CreatePayment(context.Background(), payments.ProviderOPay, testIntent("TXN2"))
	var pe *payments.ProviderError
	if !errors.As(err, &pe) || pe.Code != "02004" {
		t.Fatalf("err = %v, want provider error 02004", err)
	}
	if store.count() != 0 {
		t.Errorf("records = %d, want 0", store.count())
	}
}

func TestCreatePaymentUnconfiguredProvider(t *testing.T) {
	e, _, _ := newTestEngine(t, acceptingOPay())

	_, err := e.CreatePayment(context.Background(), payments.ProviderNsano, testIntent("TXN3"))
	if !errors.Is(err, payments.ErrProviderNotConfigured) {
		t.Fatalf("err = %v, want ErrProviderNotConfigured", err)
	}
	_, err = e.CreatePayment(context.Background(), payments.ProviderUndetermined, testIntent("TXN3"))
	if !errors.Is(err, payments.ErrUndeterminedProvider) {
		t.Fatalf("err = %v, want ErrUndeterminedProvider", err)
	}
}

func opayCallbackGateway(native string) *fakeGateway {
	gw := acceptingOPay()
	gw.parseFunc = func([]byte) (payments.CallbackResult, error) {
		tx := "TX-" + native
		return payments.CallbackResult{
			RefID:        "TXN10",
			NativeStatus: native,
			Details:      &payments.OPayDetails{TransactionID: &tx},
		}, nil
	}
	return gw
}

func TestHandleCallbackIsIdempotent(t *testing.T) {
	gw := opayCallbackGateway(payments.NativeSuccess)
	e, _, n := newTestEngine(t, gw)
	ctx := context.Background()
	if _, err := e.CreatePayment(ctx, payments.ProviderOPay, testIntent("TXN10")); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	first, err := e.HandleCallback(ctx, payments.ProviderOPay, []byte(`{"payload":{}}`))
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	if !first.Applied || first.Payment.State != payments.StateSuccess || first.Payment.Code != payments.CodeSuccess {
		t.Fatalf("first = %+v", first)
	}

	second, err := e.HandleCallback(ctx, payments.ProviderOPay, []byte(`{"payload":{}}`))
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}
	if second.Applied {
		t.Error("second callback applied, want no-op")
	}
	if second.Payment.UpdatedAt != first.Payment.UpdatedAt || second.Payment.State != payments.StateSuccess {
		t.Errorf("record changed on duplicate callback: %+v", second.Payment)
	}
	if n.len() != 1 {
		t.Errorf("events = %d, want 1", n.len())
	}
}

func TestHandleCallbackTerminalIsMonotonic(t *testing.T) {
	gw := opayCallbackGateway(payments.NativeSuccess)
	e, _, _ := newTestEngine(t, gw)
	ctx := context.Background()
	if _, err := e.CreatePayment(ctx, payments.ProviderOPay, testIntent("TXN10")); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if _, err := e.HandleCallback(ctx, payments.ProviderOPay, nil); err != nil {
		t.Fatalf("success callback: %v", err)
	}

	gw.parseFunc = func([]byte) (payments.CallbackResult, error) {
		return payments.CallbackResult{RefID: "TXN10", NativeStatus: payments.NativeFail}, nil
	}
	out, err := e.HandleCallback(ctx, payments.ProviderOPay, nil)
	if err != nil {
		t.Fatalf("late callback: %v", err)
	}
	if out.Applied || out.Payment.State != payments.StateSuccess {
		t.Errorf("late FAIL overwrote SUCCESS: %+v", out)
	}
	tx := out.Payment.Details.(*payments.OPayDetails).TransactionID
	if tx == nil || *tx != "TX-SUCCESS" {
		t.Errorf("details changed: %v", tx)
	}
}

func TestHandleCallbackBadSignature(t *testing.T) {
	gw := opayCallbackGateway(payments.NativeSuccess)
	gw.verifyFunc = func([]byte) error { return payments.ErrAuthentication }
	e, store, n := newTestEngine(t, gw)
	ctx := context.Background()
	if _, err := e.CreatePayment(ctx, payments.ProviderOPay, testIntent("TXN10")); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	_, err := e.HandleCallback(ctx, payments.ProviderOPay, []byte(`{}`))
	if !errors.Is(err, payments.ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
	p, _ := store.GetByRefID(ctx, "TXN10")
	if p.State != payments.StatePending || p.NativeStatus != payments.NativeInitial {
		t.Errorf("record changed: %+v", p)
	}
	if n.len() != 0 {
		t.Errorf("events = %d, want 0", n.len())
	}
}

func TestHandleCallbackUnknownReference(t *testing.T) {
	gw := opayCallbackGateway(payments.NativeSuccess)
	e, _, _ := newTestEngine(t, gw)

	_, err := e.HandleCallback(context.Background(), payments.ProviderOPay, nil)
	if !errors.Is(err, payments.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHandleCallbackCorrelatesByProviderOrder(t *testing.T) {
	gw := &fakeGateway{
		name: payments.ProviderMpesa,
		initiateFunc: func(payments.PaymentIntent) (payments.CreateResult, error) {
			return payments.CreateResult{Accepted: true, ProviderOrderID: "ws_CO_1", NativeStatus: payments.NativePending}, nil
		},
		parseFunc: func([]byte) (payments.CallbackResult, error) {
			return payments.CallbackResult{ProviderOrderID: "ws_CO_1", NativeStatus: payments.NativeClose}, nil
		},
	}
	e, _, _ := newTestEngine(t, gw)
	ctx := context.Background()
	if _, err := e.CreatePayment(ctx, payments.ProviderMpesa, testIntent("TXN20")); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	out, err := e.HandleCallback(ctx, payments.ProviderMpesa, nil)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if out.Payment.RefID != "TXN20" || out.Payment.State != payments.StateFailed || out.Payment.Code != payments.CodeFailed {
		t.Errorf("payment = %+v", out.Payment)
	}
	if out.Payment.Currency != "KES" {
		t.Errorf("currency = %q, want KES", out.Payment.Currency)
	}
}

func TestPaymentStatusPollFailureReturnsLocalState(t *testing.T) {
	gw := acceptingOPay()
	gw.queryFunc = func(payments.StatusQuery) (payments.StatusResult, error) {
		return payments.StatusResult{}, fmt.Errorf("opay status: %w", payments.ErrProviderUnavailable)
	}
	e, _, _ := newTestEngine(t, gw)
	ctx := context.Background()
	if _, err := e.CreatePayment(ctx, payments.ProviderOPay, testIntent("TXN30")); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	p, err := e.PaymentStatus(ctx, "TXN30")
	if err != nil {
		t.Fatalf("PaymentStatus: %v", err)
	}
	if p.State != payments.StatePending || p.Code != payments.CodePending {
		t.Errorf("payment = %+v, want local pending record", p)
	}
}

func TestPaymentStatusPollsPendingAndNotifiesTerminal(t *testing.T) {
	gw := acceptingOPay()
	gw.queryFunc = func(q payments.StatusQuery) (payments.StatusResult, error) {
		if q.RefID != "TXN31" || q.ProviderOrderID != "ORD-TXN31" {
			t.Errorf("query = %+v", q)
		}
		return payments.StatusResult{NativeStatus: payments.NativeSuccess}, nil
	}
	e, _, n := newTestEngine(t, gw)
	ctx := context.Background()
	if _, err := e.CreatePayment(ctx, payments.ProviderOPay, testIntent("TXN31")); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	p, err := e.PaymentStatus(ctx, "TXN31")
	if err != nil {
		t.Fatalf("PaymentStatus: %v", err)
	}
	if p.State != payments.StateSuccess {
		t.Errorf("state = %s, want SUCCESS", p.State)
	}
	if n.len() != 1 {
		t.Errorf("events = %d, want 1", n.len())
	}

	// Terminal records are served locally.
	if _, err := e.PaymentStatus(ctx, "TXN31"); err != nil {
		t.Fatalf("second PaymentStatus: %v", err)
	}
	if got := gw.queries.Load(); got != 1 {
		t.Errorf("provider queried %d times, want 1", got)
	}
}

func TestPaymentStatusNotFound(t *testing.T) {
	e, _, _ := newTestEngine(t, acceptingOPay())

	_, err := e.PaymentStatus(context.Background(), "missing")
	if !errors.Is(err, payments.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSweepStale(t *testing.T) {
	gw := acceptingOPay()
	gw.queryFunc = func(q payments.StatusQuery) (payments.StatusResult, error) {
		switch q.RefID {
		case "TXN40":
			return payments.StatusResult{NativeStatus: payments.NativeSuccess}, nil
		case "TXN41":
			return payments.StatusResult{NativeStatus: payments.NativePending}, nil
		}
		return payments.StatusResult{}, payments.ErrProviderUnavailable
	}
	e, store, _ := newTestEngine(t, gw)
	ctx := context.Background()

	store.now = time.Now().Add(-time.Hour)
	for _, ref := range []string{"TXN40", "TXN41", "TXN42"} {
		if _, err := e.CreatePayment(ctx, payments.ProviderOPay, testIntent(ref)); err != nil {
			t.Fatalf("CreatePayment %s: %v", ref, err)
		}
	}
	store.now = time.Now()

	res, err := e.SweepStale(ctx, 10*time.Minute, 10)
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	want := SweepResult{Checked: 3, Resolved: 1, Failed: 1}
	if res != want {
		t.Errorf("sweep = %+v, want %+v", res, want)
	}
	p, _ := store.GetByRefID(ctx, "TXN40")
	if p.State != payments.StateSuccess {
		t.Errorf("TXN40 state = %s", p.State)
	}
}

func TestCallbackAndPollRaceAppliesTerminalOnce(t *testing.T) {
	gw := opayCallbackGateway(payments.NativeSuccess)
	gw.queryFunc = func(q payments.StatusQuery) (payments.StatusResult, error) {
		return payments.StatusResult{NativeStatus: payments.NativePending}, nil
	}
	e, store, n := newTestEngine(t, gw)
	ctx := context.Background()
	if _, err := e.CreatePayment(ctx, payments.ProviderOPay, testIntent("TXN10")); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	const workers = 16
	var (
		wg      sync.WaitGroup
		applied atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				if _, err := e.PaymentStatus(ctx, "TXN10"); err != nil {
					t.Errorf("PaymentStatus: %v", err)
				}
				return
			}
			out, err := e.HandleCallback(ctx, payments.ProviderOPay, []byte(`{"payload":{}}`))
			if err != nil {
				t.Errorf("HandleCallback: %v", err)
				return
			}
			if out.Applied {
				applied.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := applied.Load(); got != 1 {
		t.Errorf("callbacks applied = %d, want 1", got)
	}
	p, _ := store.GetByRefID(ctx, "TXN10")
	if p.State != payments.StateSuccess || p.Code != payments.CodeSuccess {
		t.Errorf("final = %s/%s, want SUCCESS/00", p.State, p.Code)
	}
	if n.len() != 1 {
		t.Errorf("events = %d, want 1", n.len())
	}
}
