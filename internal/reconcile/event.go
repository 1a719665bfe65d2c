package reconcile

import (
	"time"

	"paygate/internal/domain/paymentsrepo"
	"paygate/internal/payments"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is the canonical status change forwarded to the merchant callback URL.
type Event struct {
	EventID        string            `json:"event_id"`
	RefID          string            `json:"ref_id"`
	Provider       payments.Provider `json:"provider"`
	Code           string            `json:"code"`
	Msg            string            `json:"msg"`
	Status         string            `json:"status"`
	State          payments.State    `json:"state"`
	OrderNo        string            `json:"order_no,omitempty"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	PhoneNumber    string            `json:"phone_number,omitempty"`
	InstrumentType string            `json:"instrument_type,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

func NewEvent(p *paymentsrepo.Payment) Event {
	ev := Event{
		EventID:     uuid.NewString(),
		RefID:       p.RefID,
		Provider:    p.Provider,
		Code:        p.Code,
		Msg:         p.Msg,
		Status:      p.NativeStatus,
		State:       p.State,
		Amount:      p.Amount,
		Currency:    p.Currency,
		PhoneNumber: p.Contact,
		OccurredAt:  p.UpdatedAt,
	}
	if p.ProviderOrderID != nil {
		ev.OrderNo = *p.ProviderOrderID
	}
	ev.TransactionID, ev.InstrumentType = detailRefs(p.Details)
	return ev
}

// detailRefs pulls the provider's own transaction id and instrument out of the variant.
func detailRefs(d payments.Details) (txID, instrument string) {
	switch v := d.(type) {
	case *payments.OPayDetails:
		return deref(v.TransactionID), deref(v.InstrumentType)
	case *payments.MpesaDetails:
		return deref(v.ReceiptNumber), ""
	case *payments.NsanoDetails:
		return deref(v.TransactionID), deref(v.Network)
	}
	return "", ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
