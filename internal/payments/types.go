package payments

import (
	"net/http"

	"github.com/shopspring/decimal"
)

// Provider tags one of the fixed upstream payment providers.
type Provider string

const (
	ProviderMpesa        Provider = "mpesa"
	ProviderOPay         Provider = "opay"
	ProviderNsano        Provider = "nsano"
	ProviderUndetermined Provider = "undetermined"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderMpesa, ProviderOPay, ProviderNsano:
		return true
	}
	return false
}

// PaymentIntent is the caller-supplied request to move money. It is never persisted as is.
type PaymentIntent struct {
	RefID              string
	Name               string
	PayerID            string
	Amount             decimal.Decimal
	Currency           string
	Phone              string
	Email              string
	PayMethod          string
	ProductName        string
	ProductDescription string
	Network            string // Nsano mobile network operator
	Description        string // M-Pesa transaction description
	Country            string
	ClientIP           string

	// OPay cashier extras
	CustomerVisitSource string
	EvokeOPay           *bool
	ExpireAt            int
	DisplayName         string
	SN                  string
}

// OutboundRequest is a fully built provider call. Building one performs no I/O.
type OutboundRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// CreateResult is the canonical answer of a provider to a create call.
type CreateResult struct {
	Accepted        bool
	ProviderOrderID string
	NativeStatus    string
	RedirectURL     string // OPay cashier URL
	CustomerMessage string // M-Pesa STK prompt text
	Contact         string // phone as sent on the wire
	Code            string // provider result code
	Message         string
	Details         Details
}

// StatusQuery identifies a payment at the provider for the poll path.
type StatusQuery struct {
	RefID           string
	ProviderOrderID string
}

// StatusResult is the canonical answer of a provider status query.
type StatusResult struct {
	ProviderOrderID string
	NativeStatus    string
	Details         Details
}

// CallbackResult is an inbound provider push reduced to canonical form. Either RefID or
// ProviderOrderID correlates it with a record.
type CallbackResult struct {
	RefID           string
	ProviderOrderID string
	NativeStatus    string
	Details         Details
}

// State is the canonical lifecycle of a payment record.
type State string

const (
	StatePending State = "PENDING"
	StateSuccess State = "SUCCESS"
	StateFailed  State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}
