package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

const (
	opaySandboxURL = "https://testapi.opaycheckout.com"
	opayLiveURL    = "https://liveapi.opaycheckout.com"

	opayCodeOK = "00000"

	opayDefaultVisitSource = "nativeApp"
	opayDefaultExpireAt    = 300
)

type OPayConfig struct {
	MerchantID string
	PublicKey  string
	PrivateKey string
	Country    string
	Currency   string
	Live       bool
	BaseURL    string // overrides the sandbox/live default

	ReturnURL   string
	CallbackURL string
	CancelURL   string
}

type OPayAdapter struct {
	cfg        OPayConfig
	verifier   SignatureVerifier
	httpClient *http.Client
	now        func() time.Time
}

func NewOPayAdapter(cfg OPayConfig, client *http.Client) (*OPayAdapter, error) {
	if cfg.MerchantID == "" || cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("opay: merchant id, public key and private key are required: %w", ErrMissingCredentials)
	}
	if cfg.Country == "" {
		cfg.Country = "NG"
	}
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = opaySandboxURL
		if cfg.Live {
			cfg.BaseURL = opayLiveURL
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}

	return &OPayAdapter{
		cfg:        cfg,
		verifier:   NewHMACSHA512Verifier(cfg.PrivateKey),
		httpClient: client,
		now:        time.Now,
	}, nil
}

func (o *OPayAdapter) Name() Provider { return ProviderOPay }

type opayAmount struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type opayCreateBody struct {
	Country             string       `json:"country"`
	Reference           string       `json:"reference"`
	Amount              opayAmount   `json:"amount"`
	ReturnURL           string       `json:"returnUrl,omitempty"`
	CallbackURL         string       `json:"callbackUrl,omitempty"`
	CancelURL           string       `json:"cancelUrl,omitempty"`
	CustomerVisitSource string       `json:"customerVisitSource"`
	EvokeOpay           bool         `json:"evokeOpay"`
	ExpireAt            int          `json:"expireAt"`
	UserInfo            opayUserInfo `json:"userInfo"`
	Product             opayProduct  `json:"product"`
	PayMethod           string       `json:"payMethod,omitempty"`
	UserClientIP        string       `json:"userClientIP,omitempty"`
	DisplayName         string       `json:"displayName,omitempty"`
	SN                  string       `json:"sn,omitempty"`
}

type opayUserInfo struct {
	UserEmail  string `json:"userEmail,omitempty"`
	UserID     string `json:"userId,omitempty"`
	UserMobile string `json:"userMobile,omitempty"`
	UserName   string `json:"userName,omitempty"`
}

type opayProduct struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// MinorUnits converts a major-unit amount to the integer minor-unit total OPay expects.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (o *OPayAdapter) BuildCreateRequest(intent PaymentIntent) (*OutboundRequest, error) {
	if intent.RefID == "" {
		return nil, fmt.Errorf("opay: reference is required: %w", ErrValidation)
	}
	if !intent.Amount.IsPositive() {
		return nil, fmt.Errorf("opay: amount must be positive: %w", ErrValidation)
	}

	currency := intent.Currency
	if currency == "" {
		currency = o.cfg.Currency
	}
	productName := intent.ProductName
	if productName == "" {
		productName = intent.Name
	}
	productDesc := intent.ProductDescription
	if productDesc == "" {
		productDesc = "Payment for " + intent.Name
	}
	visitSource := intent.CustomerVisitSource
	if visitSource == "" {
		visitSource = opayDefaultVisitSource
	}
	evoke := true
	if intent.EvokeOPay != nil {
		evoke = *intent.EvokeOPay
	}
	expireAt := intent.ExpireAt
	if expireAt == 0 {
		expireAt = opayDefaultExpireAt
	}

	body := opayCreateBody{
		Country:   o.cfg.Country,
		Reference: intent.RefID,
		Amount: opayAmount{
			Total:    MinorUnits(intent.Amount),
			Currency: currency,
		},
		ReturnURL:           o.cfg.ReturnURL,
		CallbackURL:         o.cfg.CallbackURL,
		CancelURL:           o.cfg.CancelURL,
		CustomerVisitSource: visitSource,
		EvokeOpay:           evoke,
		ExpireAt:            expireAt,
		UserInfo: opayUserInfo{
			UserEmail:  intent.Email,
			UserID:     intent.PayerID,
			UserMobile: NormalizePhone(intent.Phone, dialNigeria, nationalLenNigeria),
			UserName:   intent.Name,
		},
		Product: opayProduct{
			Name:        productName,
			Description: productDesc,
		},
		PayMethod:    intent.PayMethod,
		UserClientIP: intent.ClientIP,
		DisplayName:  intent.DisplayName,
		SN:           intent.SN,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("opay: encode create body: %w", err)
	}

	h := jsonHeader()
	h.Set("Authorization", "Bearer "+o.cfg.PublicKey)
	h.Set("MerchantId", o.cfg.MerchantID)

	return &OutboundRequest{
		Method: http.MethodPost,
		URL:    o.cfg.BaseURL + "/api/v1/international/cashier/create",
		Header: h,
		Body:   raw,
	}, nil
}

type opayEnvelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type opayCreateData struct {
	Reference  string `json:"reference"`
	OrderNo    string `json:"orderNo"`
	CashierURL string `json:"cashierUrl"`
	Status     string `json:"status"`
	Vat        *struct {
		Total    any    `json:"total"`
		Currency string `json:"currency"`
	} `json:"vat"`
}

// decodeEnvelope separates provider verdicts from transport-level failures.
func (o *OPayAdapter) decodeEnvelope(status int, raw []byte) (opayEnvelope, error) {
	var env opayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, unavailable(ProviderOPay, fmt.Sprintf("undecodable response (http %d)", status), err)
	}
	if env.Code != "" && env.Code != opayCodeOK {
		return env, &ProviderError{Provider: ProviderOPay, Code: env.Code, Message: env.Message}
	}
	if !is2xx(status) || env.Code == "" {
		return env, unavailable(ProviderOPay, fmt.Sprintf("unexpected response (http %d)", status), nil)
	}
	return env, nil
}

func (o *OPayAdapter) ParseCreateResponse(status int, raw []byte) (CreateResult, error) {
	env, err := o.decodeEnvelope(status, raw)
	if err != nil {
		return CreateResult{}, err
	}

	var data opayCreateData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return CreateResult{}, unavailable(ProviderOPay, "decode create data", err)
	}

	native := data.Status
	if native == "" {
		native = NativeInitial
	}
	createdAt := o.now().UnixMilli()
	details := &OPayDetails{
		CashierURL: strPtr(data.CashierURL),
		Status:     strPtr(native),
		CreateTime: &createdAt,
	}
	if data.Vat != nil {
		total := cast.ToInt64(data.Vat.Total)
		details.VatTotal = &total
		details.VatCurrency = strPtr(data.Vat.Currency)
	}

	return CreateResult{
		Accepted:        true,
		ProviderOrderID: data.OrderNo,
		NativeStatus:    native,
		RedirectURL:     data.CashierURL,
		Code:            env.Code,
		Message:         env.Message,
		Details:         details,
	}, nil
}

func (o *OPayAdapter) InitiatePayment(ctx context.Context, intent PaymentIntent) (CreateResult, error) {
	req, err := o.BuildCreateRequest(intent)
	if err != nil {
		return CreateResult{}, err
	}
	status, raw, err := send(ctx, o.httpClient, ProviderOPay, req)
	if err != nil {
		return CreateResult{}, err
	}
	res, err := o.ParseCreateResponse(status, raw)
	if err != nil {
		return CreateResult{}, err
	}

	res.Contact = NormalizePhone(intent.Phone, dialNigeria, nationalLenNigeria)
	d := res.Details.(*OPayDetails)
	d.UserEmail = strPtr(intent.Email)
	d.UserMobile = strPtr(res.Contact)
	d.PayMethod = strPtr(intent.PayMethod)
	d.ProductName = strPtr(firstNonEmpty(intent.ProductName, intent.Name))
	d.ProductDescription = strPtr(intent.ProductDescription)
	return res, nil
}

type opayStatusBody struct {
	Reference string `json:"reference"`
	Country   string `json:"country"`
}

type opayStatusData struct {
	Reference     string `json:"reference"`
	OrderNo       string `json:"orderNo"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason"`
}

// QueryStatus asks the cashier for the current status. The request body is signed with the
// merchant private key.
func (o *OPayAdapter) QueryStatus(ctx context.Context, q StatusQuery) (StatusResult, error) {
	body, err := json.Marshal(opayStatusBody{Reference: q.RefID, Country: o.cfg.Country})
	if err != nil {
		return StatusResult{}, fmt.Errorf("opay: encode status body: %w", err)
	}

	h := jsonHeader()
	h.Set("Authorization", "Bearer "+SignHMACSHA512(body, o.cfg.PrivateKey))
	h.Set("MerchantId", o.cfg.MerchantID)

	status, raw, err := send(ctx, o.httpClient, ProviderOPay, &OutboundRequest{
		Method: http.MethodPost,
		URL:    o.cfg.BaseURL + "/api/v1/international/cashier/status",
		Header: h,
		Body:   body,
	})
	if err != nil {
		return StatusResult{}, err
	}

	env, err := o.decodeEnvelope(status, raw)
	if err != nil {
		return StatusResult{}, err
	}
	var data opayStatusData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return StatusResult{}, unavailable(ProviderOPay, "decode status data", err)
	}

	return StatusResult{
		ProviderOrderID: data.OrderNo,
		NativeStatus:    data.Status,
		Details: &OPayDetails{
			Status:           strPtr(data.Status),
			DisplayedFailure: strPtr(data.FailureReason),
		},
	}, nil
}

type opayCallback struct {
	Payload json.RawMessage `json:"payload"`
	SHA512  string          `json:"sha512"`
	Type    string          `json:"type"`
}

type opayCallbackPayload struct {
	Reference        string `json:"reference"`
	Status           string `json:"status"`
	TransactionID    any    `json:"transactionId"`
	Channel          string `json:"channel"`
	Fee              any    `json:"fee"`
	FeeCurrency      string `json:"feeCurrency"`
	InstrumentType   string `json:"instrumentType"`
	Refunded         any    `json:"refunded"`
	DisplayedFailure string `json:"displayedFailure"`
	UpdatedAt        any    `json:"updated_at"`
}

func decodeOPayCallback(raw []byte) (opayCallback, error) {
	var cb opayCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return cb, fmt.Errorf("opay callback: %v: %w", err, ErrInvalidCallback)
	}
	p := bytes.TrimSpace(cb.Payload)
	if len(p) == 0 || bytes.Equal(p, []byte("null")) || cb.SHA512 == "" || cb.Type == "" {
		return cb, fmt.Errorf("opay callback: payload, sha512 and type are required: %w", ErrInvalidCallback)
	}
	return cb, nil
}

func (o *OPayAdapter) VerifyCallback(raw []byte) error {
	cb, err := decodeOPayCallback(raw)
	if err != nil {
		return err
	}
	if !o.verifier.Verify(cb.Payload, cb.SHA512) {
		return fmt.Errorf("opay callback signature mismatch: %w", ErrAuthentication)
	}
	return nil
}

func (o *OPayAdapter) ParseCallback(raw []byte) (CallbackResult, error) {
	cb, err := decodeOPayCallback(raw)
	if err != nil {
		return CallbackResult{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(cb.Payload))
	dec.UseNumber()
	var p opayCallbackPayload
	if err := dec.Decode(&p); err != nil {
		return CallbackResult{}, fmt.Errorf("opay callback payload: %v: %w", err, ErrInvalidCallback)
	}
	if p.Reference == "" {
		return CallbackResult{}, fmt.Errorf("opay callback: missing reference: %w", ErrInvalidCallback)
	}

	d := &OPayDetails{
		Status:           strPtr(p.Status),
		TransactionID:    strPtr(cast.ToString(p.TransactionID)),
		Channel:          strPtr(p.Channel),
		InstrumentType:   strPtr(p.InstrumentType),
		FeeCurrency:      strPtr(p.FeeCurrency),
		DisplayedFailure: strPtr(p.DisplayedFailure),
		UpdatedAt:        strPtr(cast.ToString(p.UpdatedAt)),
	}
	if p.Fee != nil {
		if fee, err := decimal.NewFromString(cast.ToString(p.Fee)); err == nil && !fee.IsZero() {
			fee = fee.Shift(-2)
			d.Fee = &fee
		}
	}
	if p.Refunded != nil {
		refunded := cast.ToBool(p.Refunded)
		d.Refunded = &refunded
	}

	return CallbackResult{
		RefID:        p.Reference,
		NativeStatus: p.Status,
		Details:      d,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
