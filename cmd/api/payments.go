package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"paygate/internal/domain/paymentsrepo"
	"paygate/internal/params"
	"paygate/internal/payments"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createPaymentPayload struct {
	Provider            string          `json:"provider" validate:"omitempty,oneof=mpesa opay nsano"`
	RefID               string          `json:"ref_id" validate:"omitempty,max=64"`
	Name                string          `json:"name" validate:"required,max=255"`
	PayerID             string          `json:"payer_id" validate:"required,max=100"`
	Amount              decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency            string          `json:"currency" validate:"omitempty,len=3"`
	PhoneNumber         string          `json:"phone_number" validate:"omitempty,msisdn"`
	Msisdn              string          `json:"msisdn" validate:"omitempty,msisdn"`
	Email               string          `json:"email" validate:"omitempty,email"`
	PayMethod           string          `json:"pay_method" validate:"omitempty,max=50"`
	ProductName         string          `json:"product_name" validate:"omitempty,max=255"`
	ProductDescription  string          `json:"product_description" validate:"omitempty,max=500"`
	Network             string          `json:"network" validate:"omitempty,max=20"`
	TransactionDesc     string          `json:"transaction_desc" validate:"omitempty,max=100"`
	Country             string          `json:"country" validate:"omitempty,len=2"`
	CustomerVisitSource string          `json:"customer_visit_source" validate:"omitempty,max=50"`
	EvokeOpay           *bool           `json:"evoke_opay"`
	ExpireAt            int             `json:"expire_at" validate:"omitempty,min=60,max=3600"`
	DisplayName         string          `json:"display_name" validate:"omitempty,max=100"`
	SN                  string          `json:"sn" validate:"omitempty,max=100"`
}

func (p createPaymentPayload) phone() string {
	if p.PhoneNumber != "" {
		return p.PhoneNumber
	}
	return p.Msisdn
}

type amountView struct {
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

type createPaymentResponse struct {
	Reference       string            `json:"reference"`
	OrderNo         string            `json:"order_no,omitempty"`
	CashierURL      string            `json:"cashier_url,omitempty"`
	CustomerMessage string            `json:"customer_message,omitempty"`
	Status          string            `json:"status"`
	Code            string            `json:"code"`
	Provider        payments.Provider `json:"provider"`
	Amount          amountView        `json:"amount"`
}

// createPaymentHandler godoc
//
//	@Summary		Create a payment
//	@Description	Routes the intent to OPay, M-Pesa or Nsano and records it as PENDING once the provider accepts it.
//	@Tags			Payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		createPaymentPayload	true	"Payment intent"
//	@Success		200		{object}	createPaymentResponse
//	@Failure		400		{object}	errorEnvelope
//	@Failure		401		{object}	errorEnvelope
//	@Failure		502		{object}	errorEnvelope
//	@Security		ApiKeyAuth
//	@Router			/payments [post]
func (app *application) createPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var payload createPaymentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.validationErrorResponse(w, r, err)
		return
	}

	provider := payments.SelectProvider(payments.SelectionInput{
		Provider:    payload.Provider,
		Email:       payload.Email,
		ProductName: payload.ProductName,
		PayMethod:   payload.PayMethod,
		Phone:       payload.phone(),
		Country:     payload.Country,
		Network:     payload.Network,
		Description: payload.TransactionDesc,
	})
	if provider == payments.ProviderUndetermined {
		app.paymentErrorResponse(w, r, payments.ErrUndeterminedProvider)
		return
	}

	intent := payments.PaymentIntent{
		RefID:               payload.RefID,
		Name:                payload.Name,
		PayerID:             payload.PayerID,
		Amount:              payload.Amount,
		Currency:            strings.ToUpper(payload.Currency),
		Phone:               payload.phone(),
		Email:               payload.Email,
		PayMethod:           payload.PayMethod,
		ProductName:         payload.ProductName,
		ProductDescription:  payload.ProductDescription,
		Network:             payload.Network,
		Description:         payload.TransactionDesc,
		Country:             payload.Country,
		ClientIP:            clientIP(r),
		CustomerVisitSource: payload.CustomerVisitSource,
		EvokeOPay:           payload.EvokeOpay,
		ExpireAt:            payload.ExpireAt,
		DisplayName:         payload.DisplayName,
		SN:                  payload.SN,
	}

	out, err := app.engine.CreatePayment(r.Context(), provider, intent)
	if err != nil {
		app.paymentErrorResponse(w, r, err)
		return
	}

	p := out.Payment
	resp := createPaymentResponse{
		Reference:       p.RefID,
		CashierURL:      out.RedirectURL,
		CustomerMessage: out.CustomerMessage,
		Status:          p.NativeStatus,
		Code:            p.Code,
		Provider:        p.Provider,
		Amount:          amountView{Total: p.Amount, Currency: p.Currency},
	}
	if p.ProviderOrderID != nil {
		resp.OrderNo = *p.ProviderOrderID
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

type paymentStatusResponse struct {
	RefID          string            `json:"ref_id"`
	Code           string            `json:"code"`
	Msg            string            `json:"msg"`
	Status         string            `json:"status"`
	State          payments.State    `json:"state"`
	Provider       payments.Provider `json:"provider"`
	OrderNo        string            `json:"order_no,omitempty"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	Amount         *decimal.Decimal  `json:"amount,omitempty"`
	Currency       string            `json:"currency,omitempty"`
	Fee            *decimal.Decimal  `json:"fee,omitempty"`
	FeeCurrency    string            `json:"fee_currency,omitempty"`
	PaymentChannel string            `json:"payment_channel,omitempty"`
}

func newPaymentStatusResponse(p *paymentsrepo.Payment) paymentStatusResponse {
	resp := paymentStatusResponse{
		RefID:    p.RefID,
		Code:     p.Code,
		Msg:      p.Msg,
		Status:   p.NativeStatus,
		State:    p.State,
		Provider: p.Provider,
		Currency: p.Currency,
	}
	if !p.Amount.IsZero() {
		amount := p.Amount
		resp.Amount = &amount
	}
	if p.ProviderOrderID != nil {
		resp.OrderNo = *p.ProviderOrderID
	}

	switch d := p.Details.(type) {
	case *payments.OPayDetails:
		resp.TransactionID = deref(d.TransactionID)
		resp.Fee = d.Fee
		resp.FeeCurrency = deref(d.FeeCurrency)
		resp.PaymentChannel = deref(d.Channel)
	case *payments.MpesaDetails:
		resp.TransactionID = deref(d.ReceiptNumber)
	case *payments.NsanoDetails:
		resp.TransactionID = deref(d.TransactionID)
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// getPaymentStatusHandler godoc
//
//	@Summary		Payment status
//	@Description	Returns the payment, polling the provider first while it is still pending.
//	@Tags			Payments
//	@Produce		json
//	@Param			refID	path		string	true	"Payment reference"
//	@Success		200		{object}	paymentStatusResponse
//	@Failure		404		{object}	errorEnvelope
//	@Security		ApiKeyAuth
//	@Router			/payments/{refID} [get]
func (app *application) getPaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	app.writePaymentStatus(w, r, chi.URLParam(r, "refID"))
}

type paymentStatusPayload struct {
	RefID string `json:"ref_id" validate:"required,max=64"`
}

// paymentStatusHandler godoc
//
//	@Summary		Payment status (body)
//	@Tags			Payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		paymentStatusPayload	true	"Reference"
//	@Success		200		{object}	paymentStatusResponse
//	@Failure		400		{object}	errorEnvelope
//	@Failure		404		{object}	errorEnvelope
//	@Security		ApiKeyAuth
//	@Router			/payment-status [post]
func (app *application) paymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	var payload paymentStatusPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.validationErrorResponse(w, r, err)
		return
	}
	app.writePaymentStatus(w, r, payload.RefID)
}

func (app *application) writePaymentStatus(w http.ResponseWriter, r *http.Request, refID string) {
	if strings.TrimSpace(refID) == "" {
		app.badRequestResponse(w, r, errors.New("ref_id is required"))
		return
	}

	p, err := app.engine.PaymentStatus(r.Context(), refID)
	if err != nil {
		app.paymentErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, newPaymentStatusResponse(p)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listPaymentsHandler godoc
//
//	@Summary		List payments
//	@Description	Returns a paginated list of payments, newest first. Optional filters: status, provider, since.
//	@Tags			Payments
//	@Produce		json
//	@Param			status		query		string			false	"PENDING | SUCCESS | FAILED"
//	@Param			provider	query		string			false	"opay | mpesa | nsano"
//	@Param			since		query		string			false	"RFC3339 timestamp; returns payments created_at >= since"
//	@Param			page		query		int				false	"Page number (default: 1)"
//	@Param			limit		query		int				false	"Items per page (default 20, max 100)"
//	@Success		200			{object}	map[string]any	"{ payments, pagination }"
//	@Failure		400			{object}	errorEnvelope
//	@Security		ApiKeyAuth
//	@Router			/payments [get]
func (app *application) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	f, err := params.ParsePaymentFilter(r.URL.Query())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if f.Provider != "" && !payments.Provider(f.Provider).Valid() {
		app.badRequestResponse(w, r, fmt.Errorf("unknown provider %q", f.Provider))
		return
	}

	list, total, err := app.engine.ListPayments(r.Context(), paymentsrepo.ListFilter{
		State:    f.Status,
		Provider: f.Provider,
		Since:    f.Since,
		Limit:    f.Limit,
		Offset:   f.Offset,
	})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	f.ComputeMeta(total)

	if list == nil {
		list = []*paymentsrepo.Payment{}
	}
	if err := writeJSON(w, http.StatusOK, map[string]any{
		"payments":   list,
		"pagination": f.Pagination,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}
