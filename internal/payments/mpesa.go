package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	mpesaSandboxURL = "https://sandbox.safaricom.co.ke"
	mpesaLiveURL    = "https://api.safaricom.co.ke"

	mpesaTimestampLayout  = "20060102150405"
	mpesaAccountRefMaxLen = 12
	mpesaDefaultTxType    = "CustomerPayBillOnline"

	// returned by the query endpoint while the customer has not answered the prompt
	mpesaStillProcessing = "500.001.1001"
)

var eastAfrica = time.FixedZone("EAT", 3*60*60)

type MpesaConfig struct {
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PassKey         string
	CallbackURL     string
	TransactionType string
	Live            bool
	BaseURL         string
}

type MpesaAdapter struct {
	cfg        MpesaConfig
	tokens     *darajaTokenSource
	verifier   SignatureVerifier
	httpClient *http.Client
	now        func() time.Time
}

func NewMpesaAdapter(cfg MpesaConfig, client *http.Client) (*MpesaAdapter, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" || cfg.ShortCode == "" || cfg.PassKey == "" {
		return nil, fmt.Errorf("mpesa: consumer key, consumer secret, short code and pass key are required: %w", ErrMissingCredentials)
	}
	if cfg.CallbackURL == "" {
		return nil, fmt.Errorf("mpesa: callback url is required: %w", ErrMissingCredentials)
	}
	if cfg.TransactionType == "" {
		cfg.TransactionType = mpesaDefaultTxType
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = mpesaSandboxURL
		if cfg.Live {
			cfg.BaseURL = mpesaLiveURL
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}

	return &MpesaAdapter{
		cfg:        cfg,
		tokens:     newDarajaTokenSource(client, cfg.BaseURL, cfg.ConsumerKey, cfg.ConsumerSecret),
		verifier:   NoopVerifier{},
		httpClient: client,
		now:        time.Now,
	}, nil
}

func (m *MpesaAdapter) Name() Provider { return ProviderMpesa }

// password returns the STK password and the timestamp it was derived from.
func (m *MpesaAdapter) password() (string, string) {
	ts := m.now().In(eastAfrica).Format(mpesaTimestampLayout)
	pw := base64.StdEncoding.EncodeToString([]byte(m.cfg.ShortCode + m.cfg.PassKey + ts))
	return pw, ts
}

type stkPushBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

func (m *MpesaAdapter) BuildCreateRequest(intent PaymentIntent) (*OutboundRequest, error) {
	if intent.RefID == "" {
		return nil, fmt.Errorf("mpesa: reference is required: %w", ErrValidation)
	}
	amount := intent.Amount.Round(0).IntPart()
	if amount < 1 {
		return nil, fmt.Errorf("mpesa: amount must be at least 1: %w", ErrValidation)
	}
	phone := wirePhone(intent.Phone, dialKenya, nationalLenKenya)
	if phone == "" {
		return nil, fmt.Errorf("mpesa: phone number is required: %w", ErrValidation)
	}

	accountRef := intent.RefID
	if len(accountRef) > mpesaAccountRefMaxLen {
		accountRef = accountRef[:mpesaAccountRefMaxLen]
	}
	desc := intent.Description
	if desc == "" {
		desc = "Payment"
	}

	pw, ts := m.password()
	raw, err := json.Marshal(stkPushBody{
		BusinessShortCode: m.cfg.ShortCode,
		Password:          pw,
		Timestamp:         ts,
		TransactionType:   m.cfg.TransactionType,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            m.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       m.cfg.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   desc,
	})
	if err != nil {
		return nil, fmt.Errorf("mpesa: encode stk push: %w", err)
	}

	return &OutboundRequest{
		Method: http.MethodPost,
		URL:    m.cfg.BaseURL + "/mpesa/stkpush/v1/processrequest",
		Header: jsonHeader(),
		Body:   raw,
	}, nil
}

type darajaResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        any    `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ResultCode          any    `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`

	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func decodeDaraja(status int, raw []byte) (darajaResponse, error) {
	var res darajaResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return res, unavailable(ProviderMpesa, fmt.Sprintf("undecodable response (http %d)", status), err)
	}
	return res, nil
}

func (m *MpesaAdapter) ParseCreateResponse(status int, raw []byte) (CreateResult, error) {
	res, err := decodeDaraja(status, raw)
	if err != nil {
		return CreateResult{}, err
	}
	if res.ErrorCode != "" {
		return CreateResult{}, &ProviderError{Provider: ProviderMpesa, Code: res.ErrorCode, Message: res.ErrorMessage}
	}
	code := cast.ToString(res.ResponseCode)
	if code != "" && code != "0" {
		return CreateResult{}, &ProviderError{Provider: ProviderMpesa, Code: code, Message: res.ResponseDescription}
	}
	if !is2xx(status) || code == "" || res.CheckoutRequestID == "" {
		return CreateResult{}, unavailable(ProviderMpesa, fmt.Sprintf("unexpected response (http %d)", status), nil)
	}

	return CreateResult{
		Accepted:        true,
		ProviderOrderID: res.CheckoutRequestID,
		NativeStatus:    NativePending,
		CustomerMessage: res.CustomerMessage,
		Code:            code,
		Message:         res.ResponseDescription,
		Details: &MpesaDetails{
			MerchantRequestID: strPtr(res.MerchantRequestID),
			CheckoutRequestID: strPtr(res.CheckoutRequestID),
			CustomerMessage:   strPtr(res.CustomerMessage),
		},
	}, nil
}

func (m *MpesaAdapter) authorize(ctx context.Context, req *OutboundRequest) error {
	tok, err := m.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	return nil
}

func (m *MpesaAdapter) InitiatePayment(ctx context.Context, intent PaymentIntent) (CreateResult, error) {
	req, err := m.BuildCreateRequest(intent)
	if err != nil {
		return CreateResult{}, err
	}
	if err := m.authorize(ctx, req); err != nil {
		return CreateResult{}, err
	}
	status, raw, err := send(ctx, m.httpClient, ProviderMpesa, req)
	if err != nil {
		return CreateResult{}, err
	}
	res, err := m.ParseCreateResponse(status, raw)
	if err != nil {
		return CreateResult{}, err
	}

	res.Contact = wirePhone(intent.Phone, dialKenya, nationalLenKenya)
	d := res.Details.(*MpesaDetails)
	d.PhoneNumber = strPtr(res.Contact)
	d.Description = strPtr(intent.Description)
	return res, nil
}

// mpesaResultStatus translates an STK result code into the shared native vocabulary.
func mpesaResultStatus(code string) string {
	switch strings.TrimSpace(code) {
	case "0":
		return NativeSuccess
	case "1032", "1037", "1019": // cancelled by user, unreachable, expired
		return NativeClose
	case "":
		return NativePending
	default:
		return NativeFail
	}
}

type stkQueryBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

func (m *MpesaAdapter) QueryStatus(ctx context.Context, q StatusQuery) (StatusResult, error) {
	if q.ProviderOrderID == "" {
		return StatusResult{}, fmt.Errorf("mpesa: checkout request id is required: %w", ErrValidation)
	}

	pw, ts := m.password()
	body, err := json.Marshal(stkQueryBody{
		BusinessShortCode: m.cfg.ShortCode,
		Password:          pw,
		Timestamp:         ts,
		CheckoutRequestID: q.ProviderOrderID,
	})
	if err != nil {
		return StatusResult{}, fmt.Errorf("mpesa: encode stk query: %w", err)
	}
	req := &OutboundRequest{
		Method: http.MethodPost,
		URL:    m.cfg.BaseURL + "/mpesa/stkpushquery/v1/query",
		Header: jsonHeader(),
		Body:   body,
	}
	if err := m.authorize(ctx, req); err != nil {
		return StatusResult{}, err
	}

	status, raw, err := send(ctx, m.httpClient, ProviderMpesa, req)
	if err != nil {
		return StatusResult{}, err
	}
	res, err := decodeDaraja(status, raw)
	if err != nil {
		return StatusResult{}, err
	}

	switch {
	case res.ErrorCode == mpesaStillProcessing:
		return StatusResult{ProviderOrderID: q.ProviderOrderID, NativeStatus: NativePending}, nil
	case res.ErrorCode != "":
		return StatusResult{}, &ProviderError{Provider: ProviderMpesa, Code: res.ErrorCode, Message: res.ErrorMessage}
	case !is2xx(status):
		return StatusResult{}, unavailable(ProviderMpesa, fmt.Sprintf("query returned http %d", status), nil)
	}

	resultCode := cast.ToString(res.ResultCode)
	return StatusResult{
		ProviderOrderID: q.ProviderOrderID,
		NativeStatus:    mpesaResultStatus(resultCode),
		Details: &MpesaDetails{
			MerchantRequestID: strPtr(res.MerchantRequestID),
			ResultCode:        strPtr(resultCode),
			ResultDesc:        strPtr(res.ResultDesc),
		},
	}, nil
}

type stkCallback struct {
	Body struct {
		STKCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        any    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func decodeSTKCallback(raw []byte) (stkCallback, error) {
	var cb stkCallback
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&cb); err != nil {
		return cb, fmt.Errorf("mpesa callback: %v: %w", err, ErrInvalidCallback)
	}
	if cb.Body.STKCallback == nil || cb.Body.STKCallback.CheckoutRequestID == "" || cb.Body.STKCallback.ResultCode == nil {
		return cb, fmt.Errorf("mpesa callback: missing stkCallback fields: %w", ErrInvalidCallback)
	}
	return cb, nil
}

// VerifyCallback only checks the shape: Daraja does not sign STK callbacks.
func (m *MpesaAdapter) VerifyCallback(raw []byte) error {
	if _, err := decodeSTKCallback(raw); err != nil {
		return err
	}
	if !m.verifier.Verify(raw, "") {
		return fmt.Errorf("mpesa callback rejected: %w", ErrAuthentication)
	}
	return nil
}

func (m *MpesaAdapter) ParseCallback(raw []byte) (CallbackResult, error) {
	cb, err := decodeSTKCallback(raw)
	if err != nil {
		return CallbackResult{}, err
	}
	stk := cb.Body.STKCallback
	resultCode := cast.ToString(stk.ResultCode)

	d := &MpesaDetails{
		MerchantRequestID: strPtr(stk.MerchantRequestID),
		CheckoutRequestID: strPtr(stk.CheckoutRequestID),
		ResultCode:        strPtr(resultCode),
		ResultDesc:        strPtr(stk.ResultDesc),
	}
	if stk.CallbackMetadata != nil {
		for _, item := range stk.CallbackMetadata.Item {
			v := strPtr(cast.ToString(item.Value))
			switch item.Name {
			case "Amount":
				d.PaidAmount = v
			case "MpesaReceiptNumber":
				d.ReceiptNumber = v
			case "TransactionDate":
				d.TransactionDate = v
			case "PhoneNumber":
				d.PhoneNumber = v
			}
		}
	}

	return CallbackResult{
		ProviderOrderID: stk.CheckoutRequestID,
		NativeStatus:    mpesaResultStatus(resultCode),
		Details:         d,
	}, nil
}
