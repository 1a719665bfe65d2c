package paymentsrepo

import (
	"context"
	"time"

	"paygate/internal/payments"

	"github.com/shopspring/decimal"
)

// Payment is one transaction attempt: a common header plus the provider variant in Details.
type Payment struct {
	ID              int64             `json:"id"`
	RefID           string            `json:"ref_id"`
	Provider        payments.Provider `json:"provider"`
	ProviderOrderID *string           `json:"provider_order_id,omitempty"`
	Name            string            `json:"name"`
	PayerID         string            `json:"payer_id"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Contact         string            `json:"contact"`
	State           payments.State    `json:"state"`
	NativeStatus    string            `json:"native_status"`
	Code            string            `json:"code"`
	Msg             string            `json:"msg"`
	Details         payments.Details  `json:"details,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// StatusUpdate is what a callback or poll asserts about a payment. Empty fields are left
// untouched.
type StatusUpdate struct {
	ProviderOrderID string
	NativeStatus    string
	Details         payments.Details
}

// ListFilter narrows List. Zero values mean no filter.
type ListFilter struct {
	State    string
	Provider string
	Since    *time.Time
	Limit    int
	Offset   int
}

type Store interface {
	Create(ctx context.Context, p *Payment) (*Payment, error)
	GetByRefID(ctx context.Context, refID string) (*Payment, error)
	GetByProviderRef(ctx context.Context, provider payments.Provider, ref string) (*Payment, error)

	// ApplyStatus writes u only while the payment is PENDING. The returned bool reports
	// whether the write happened; the returned payment is the current row either way.
	ApplyStatus(ctx context.Context, refID string, u StatusUpdate) (*Payment, bool, error)

	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*Payment, error)
	List(ctx context.Context, f ListFilter) ([]*Payment, int, error)
}
