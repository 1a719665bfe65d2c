package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const (
	testOPayMerchant = "256612345678901"
	testOPayPublic   = "OPAYPUB-test"
	testOPayPrivate  = "OPAYPRV-test"
)

func newTestOPay(t *testing.T, baseURL string) *OPayAdapter {
	t.Helper()
	a, err := NewOPayAdapter(OPayConfig{
		MerchantID:  testOPayMerchant,
		PublicKey:   testOPayPublic,
		PrivateKey:  testOPayPrivate,
		BaseURL:     baseURL,
		CallbackURL: "https://pay.example.com/v1/payments/callback/opay",
	}, NewHTTPClient(2*time.Second))
	if err != nil {
		t.Fatalf("NewOPayAdapter: %v", err)
	}
	return a
}

func nigeriaIntent() PaymentIntent {
	return PaymentIntent{
		RefID:    "TXN1",
		Name:     "John Doe",
		PayerID:  "12345",
		Amount:   decimal.RequireFromString("1000.50"),
		Currency: "NGN",
		Phone:    "08012345678",
		Email:    "john.doe@example.com",
	}
}

func TestNewOPayAdapterRequiresCredentials(t *testing.T) {
	_, err := NewOPayAdapter(OPayConfig{MerchantID: "m", PublicKey: "p"}, nil)
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestOPayBuildCreateRequest(t *testing.T) {
	a := newTestOPay(t, "https://opay.test")

	req, err := a.BuildCreateRequest(nigeriaIntent())
	if err != nil {
		t.Fatalf("BuildCreateRequest: %v", err)
	}
	if req.URL != "https://opay.test/api/v1/international/cashier/create" {
		t.Errorf("url = %s", req.URL)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer "+testOPayPublic {
		t.Errorf("authorization = %q", got)
	}
	if got := req.Header.Get("MerchantId"); got != testOPayMerchant {
		t.Errorf("merchant id = %q", got)
	}

	var body opayCreateBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Amount.Total != 100050 {
		t.Errorf("amount.total = %d, want 100050", body.Amount.Total)
	}
	if body.UserInfo.UserMobile != "+2348012345678" {
		t.Errorf("userMobile = %q", body.UserInfo.UserMobile)
	}
	if body.Country != "NG" || body.Reference != "TXN1" {
		t.Errorf("country/reference = %q/%q", body.Country, body.Reference)
	}
	if body.CustomerVisitSource != "nativeApp" || !body.EvokeOpay || body.ExpireAt != 300 {
		t.Errorf("defaults not applied: %+v", body)
	}
	if body.Product.Name != "John Doe" || body.Product.Description != "Payment for John Doe" {
		t.Errorf("product defaults = %+v", body.Product)
	}
}

func TestOPayBuildCreateRequestRejectsZeroAmount(t *testing.T) {
	a := newTestOPay(t, "https://opay.test")
	intent := nigeriaIntent()
	intent.Amount = decimal.Zero
	if _, err := a.BuildCreateRequest(intent); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestMinorUnits(t *testing.T) {
	tests := map[string]int64{
		"1000.50": 100050,
		"1":       100,
		"0.015":   2,
		"19.99":   1999,
	}
	for in, want := range tests {
		if got := MinorUnits(decimal.RequireFromString(in)); got != want {
			t.Errorf("MinorUnits(%s) = %d, want %d", in, got, want)
		}
	}
}

func TestOPayInitiatePayment(t *testing.T) {
	var gotTotal int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/international/cashier/create" {
			http.NotFound(w, r)
			return
		}
		var body opayCreateBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotTotal = body.Amount.Total
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"code":"00000","message":"SUCCESSFUL","data":{
			"reference":"TXN1","orderNo":"211009140896553163",
			"cashierUrl":"https://sandboxcashier.opaycheckout.com/apiCashier/redirect/payment/checkout?orderToken=TOKEN",
			"status":"INITIAL","amount":{"total":100050,"currency":"NGN"},"vat":{"total":0,"currency":"NGN"}}}`)
	}))
	defer srv.Close()

	a := newTestOPay(t, srv.URL)
	res, err := a.InitiatePayment(context.Background(), nigeriaIntent())
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if gotTotal != 100050 {
		t.Errorf("server saw amount.total = %d", gotTotal)
	}
	if !res.Accepted || res.ProviderOrderID != "211009140896553163" || res.NativeStatus != "INITIAL" {
		t.Errorf("result = %+v", res)
	}
	if res.Contact != "+2348012345678" {
		t.Errorf("contact = %q", res.Contact)
	}
	d := res.Details.(*OPayDetails)
	if d.CashierURL == nil || *d.CashierURL != res.RedirectURL {
		t.Errorf("cashier url not recorded: %v", d.CashierURL)
	}
	if d.UserEmail == nil || *d.UserEmail != "john.doe@example.com" {
		t.Errorf("user email not recorded")
	}
	if d.VatTotal == nil || *d.VatTotal != 0 {
		t.Errorf("vat not recorded")
	}
}

func TestOPayParseCreateResponse(t *testing.T) {
	a := newTestOPay(t, "https://opay.test")

	t.Run("rejection", func(t *testing.T) {
		_, err := a.ParseCreateResponse(200, []byte(`{"code":"02004","message":"the payment reference(merchant order number) already exists."}`))
		var perr *ProviderError
		if !errors.As(err, &perr) || perr.Code != "02004" {
			t.Fatalf("err = %v, want ProviderError 02004", err)
		}
	})

	t.Run("gateway error page", func(t *testing.T) {
		_, err := a.ParseCreateResponse(502, []byte(`<html>Bad Gateway</html>`))
		if !errors.Is(err, ErrProviderUnavailable) {
			t.Fatalf("err = %v, want ErrProviderUnavailable", err)
		}
	})

	t.Run("5xx without code", func(t *testing.T) {
		_, err := a.ParseCreateResponse(503, []byte(`{}`))
		if !errors.Is(err, ErrProviderUnavailable) {
			t.Fatalf("err = %v, want ErrProviderUnavailable", err)
		}
	})
}

func TestOPayInitiatePaymentUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	a := newTestOPay(t, url)
	if _, err := a.InitiatePayment(context.Background(), nigeriaIntent()); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestOPayQueryStatusSignsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("Authorization") != "Bearer "+SignHMACSHA512(body, testOPayPrivate) {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"code":"02000","message":"authentication failed."}`)
			return
		}
		io.WriteString(w, `{"code":"00000","message":"SUCCESSFUL","data":{"reference":"TXN1","orderNo":"211009140896553163","status":"SUCCESS"}}`)
	}))
	defer srv.Close()

	a := newTestOPay(t, srv.URL)
	res, err := a.QueryStatus(context.Background(), StatusQuery{RefID: "TXN1"})
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if res.NativeStatus != NativeSuccess || res.ProviderOrderID != "211009140896553163" {
		t.Errorf("result = %+v", res)
	}
}

func opayCallbackBody(payload, secret string) []byte {
	sig := SignHMACSHA512([]byte(payload), secret)
	return []byte(`{"payload":` + payload + `,"sha512":"` + sig + `","type":"transaction-status"}`)
}

const opaySuccessPayload = `{"amount":"100050","channel":"Web","country":"NG","currency":"NGN","displayedFailure":"","fee":"1500","feeCurrency":"NGN","instrumentType":"BankCard","reference":"TXN1","refunded":false,"status":"SUCCESS","timestamp":"2022-05-07T06:20:46Z","token":"220507145660712931829","transactionId":"211215140485151728","updated_at":"2022-05-07T07:20:46Z"}`

func TestOPayCallback(t *testing.T) {
	a := newTestOPay(t, "https://opay.test")
	raw := opayCallbackBody(opaySuccessPayload, testOPayPrivate)

	if err := a.VerifyCallback(raw); err != nil {
		t.Fatalf("VerifyCallback: %v", err)
	}
	cb, err := a.ParseCallback(raw)
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if cb.RefID != "TXN1" || cb.NativeStatus != NativeSuccess {
		t.Errorf("callback = %+v", cb)
	}
	d := cb.Details.(*OPayDetails)
	if d.Fee == nil || !d.Fee.Equal(decimal.NewFromInt(15)) {
		t.Errorf("fee = %v, want 15", d.Fee)
	}
	if d.Refunded == nil || *d.Refunded {
		t.Errorf("refunded = %v, want false", d.Refunded)
	}
	if d.DisplayedFailure != nil {
		t.Errorf("empty displayedFailure should not be asserted")
	}
	if *d.TransactionID != "211215140485151728" || *d.Channel != "Web" || *d.InstrumentType != "BankCard" {
		t.Errorf("details = %+v", d)
	}
}

func TestOPayCallbackRejections(t *testing.T) {
	a := newTestOPay(t, "https://opay.test")

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"bad signature", opayCallbackBody(opaySuccessPayload, "not-the-key"), ErrAuthentication},
		{"missing sha512", []byte(`{"payload":{"reference":"TXN1"},"type":"transaction-status"}`), ErrInvalidCallback},
		{"missing payload", []byte(`{"sha512":"abc","type":"transaction-status"}`), ErrInvalidCallback},
		{"not json", []byte(`reference=TXN1`), ErrInvalidCallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := a.VerifyCallback(tt.raw); !errors.Is(err, tt.want) {
				t.Errorf("VerifyCallback() = %v, want %v", err, tt.want)
			}
		})
	}
}
