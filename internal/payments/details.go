package payments

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Details is the provider-specific part of a payment record. Exactly one implementation
// exists per provider; all fields are optional and absent fields are never written.
type Details interface {
	Provider() Provider
}

// OPayDetails holds the cashier and callback vocabulary of OPay.
type OPayDetails struct {
	CashierURL         *string          `json:"cashier_url,omitempty"`
	Status             *string          `json:"opay_status,omitempty"`
	TransactionID      *string          `json:"transaction_id,omitempty"`
	PayMethod          *string          `json:"pay_method,omitempty"`
	Channel            *string          `json:"payment_channel,omitempty"`
	InstrumentType     *string          `json:"instrument_type,omitempty"`
	Fee                *decimal.Decimal `json:"fee,omitempty"`
	FeeCurrency        *string          `json:"fee_currency,omitempty"`
	Refunded           *bool            `json:"refunded,omitempty"`
	DisplayedFailure   *string          `json:"displayed_failure,omitempty"`
	UserEmail          *string          `json:"user_email,omitempty"`
	UserMobile         *string          `json:"user_mobile,omitempty"`
	ProductName        *string          `json:"product_name,omitempty"`
	ProductDescription *string          `json:"product_description,omitempty"`
	VatTotal           *int64           `json:"vat_total,omitempty"`
	VatCurrency        *string          `json:"vat_currency,omitempty"`
	CreateTime         *int64           `json:"create_time,omitempty"`
	UpdatedAt          *string          `json:"updated_at_timestamp,omitempty"`
}

func (*OPayDetails) Provider() Provider { return ProviderOPay }

// MpesaDetails holds the STK push vocabulary of Daraja.
type MpesaDetails struct {
	MerchantRequestID *string `json:"merchant_request_id,omitempty"`
	CheckoutRequestID *string `json:"checkout_request_id,omitempty"`
	ResultCode        *string `json:"result_code,omitempty"`
	ResultDesc        *string `json:"result_desc,omitempty"`
	ReceiptNumber     *string `json:"mpesa_receipt_number,omitempty"`
	TransactionDate   *string `json:"transaction_date,omitempty"`
	PhoneNumber       *string `json:"phone_number,omitempty"`
	PaidAmount        *string `json:"paid_amount,omitempty"`
	CustomerMessage   *string `json:"customer_message,omitempty"`
	Description       *string `json:"transaction_desc,omitempty"`
}

func (*MpesaDetails) Provider() Provider { return ProviderMpesa }

// NsanoDetails holds the Fusion debit vocabulary of Nsano.
type NsanoDetails struct {
	Network       *string `json:"network,omitempty"`
	Msisdn        *string `json:"msisdn,omitempty"`
	AuthorRefID   *string `json:"author_ref_id,omitempty"`
	AuthorRef     *string `json:"author_ref,omitempty"`
	Reference     *string `json:"reference,omitempty"`
	ProviderCode  *string `json:"provider_code,omitempty"`
	ProviderMsg   *string `json:"provider_msg,omitempty"`
	SystemCode    *string `json:"system_code,omitempty"`
	SystemMsg     *string `json:"system_msg,omitempty"`
	TransactionID *string `json:"transaction_id,omitempty"`
	UserID        *string `json:"user_id,omitempty"`
	BalanceBefore *string `json:"balance_before,omitempty"`
	BalanceAfter  *string `json:"balance_after,omitempty"`
	MetadataID    *string `json:"meta_data_id,omitempty"`
	Date          *string `json:"date,omitempty"`
	Type          *string `json:"type,omitempty"`
}

func (*NsanoDetails) Provider() Provider { return ProviderNsano }

// NewDetails returns an empty variant for p.
func NewDetails(p Provider) (Details, error) {
	switch p {
	case ProviderOPay:
		return &OPayDetails{}, nil
	case ProviderMpesa:
		return &MpesaDetails{}, nil
	case ProviderNsano:
		return &NsanoDetails{}, nil
	}
	return nil, fmt.Errorf("no details variant for provider %q", p)
}

// DecodeDetails unmarshals a stored variant. Empty input yields an empty variant.
func DecodeDetails(p Provider, raw []byte) (Details, error) {
	d, err := NewDetails(p)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", p, err)
	}
	return d, nil
}

// MergeDetails overlays the keys update asserts on top of base. It has the same semantics as
// the JSONB || merge used by the repository.
func MergeDetails(base, update Details) (Details, error) {
	if update == nil {
		return base, nil
	}
	if base == nil {
		return update, nil
	}
	if base.Provider() != update.Provider() {
		return nil, fmt.Errorf("cannot merge %s details into %s record", update.Provider(), base.Provider())
	}

	fields := map[string]json.RawMessage{}
	for _, d := range []Details{base, update} {
		b, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return DecodeDetails(base.Provider(), merged)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
