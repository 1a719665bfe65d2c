package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cast"
)

const (
	nsanoCodeSuccess = "00"
	nsanoCodePending = "03"
)

type NsanoConfig struct {
	APIKey    string
	ShortName string // prefixed to every reference sent to Fusion
	BaseURL   string
}

type NsanoAdapter struct {
	cfg        NsanoConfig
	verifier   SignatureVerifier
	httpClient *http.Client
}

func NewNsanoAdapter(cfg NsanoConfig, client *http.Client) (*NsanoAdapter, error) {
	if cfg.APIKey == "" || cfg.ShortName == "" || cfg.BaseURL == "" {
		return nil, fmt.Errorf("nsano: api key, short name and base url are required: %w", ErrMissingCredentials)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}
	return &NsanoAdapter{cfg: cfg, verifier: NoopVerifier{}, httpClient: client}, nil
}

func (n *NsanoAdapter) Name() Provider { return ProviderNsano }

func (n *NsanoAdapter) authorRef(refID string) string { return n.cfg.ShortName + refID }

func (n *NsanoAdapter) BuildCreateRequest(intent PaymentIntent) (*OutboundRequest, error) {
	if intent.RefID == "" {
		return nil, fmt.Errorf("nsano: reference is required: %w", ErrValidation)
	}
	if !intent.Amount.IsPositive() {
		return nil, fmt.Errorf("nsano: amount must be positive: %w", ErrValidation)
	}
	if !isNsanoNetwork(intent.Network) {
		return nil, fmt.Errorf("nsano: network %q is not one of %s: %w", intent.Network, strings.Join(NsanoNetworks, ", "), ErrValidation)
	}
	msisdn := wirePhone(intent.Phone, dialIvoryCoast, nationalLenIvoryCoast)
	if msisdn == "" {
		return nil, fmt.Errorf("nsano: msisdn is required: %w", ErrValidation)
	}

	form := url.Values{}
	form.Set("kuwaita", "malipo")
	form.Set("amount", intent.Amount.String())
	form.Set("mno", strings.ToUpper(strings.TrimSpace(intent.Network)))
	form.Set("msisdn", msisdn)
	form.Set("refID", n.authorRef(intent.RefID))

	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Set("Accept", "application/json")

	return &OutboundRequest{
		Method: http.MethodPost,
		URL:    n.cfg.BaseURL + "/fusion/tp/" + url.PathEscape(n.cfg.APIKey),
		Header: h,
		Body:   []byte(form.Encode()),
	}, nil
}

type nsanoCreateResponse struct {
	Code      any    `json:"code"`
	Msg       string `json:"msg"`
	Reference string `json:"reference"`
}

func (n *NsanoAdapter) ParseCreateResponse(status int, raw []byte) (CreateResult, error) {
	var res nsanoCreateResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return CreateResult{}, unavailable(ProviderNsano, fmt.Sprintf("undecodable response (http %d)", status), err)
	}
	code := cast.ToString(res.Code)
	if code != "" && code != nsanoCodeSuccess && code != nsanoCodePending {
		return CreateResult{}, &ProviderError{Provider: ProviderNsano, Code: code, Message: res.Msg}
	}
	if code == "" || !is2xx(status) {
		return CreateResult{}, unavailable(ProviderNsano, fmt.Sprintf("unexpected response (http %d)", status), nil)
	}

	return CreateResult{
		Accepted:        true,
		ProviderOrderID: res.Reference,
		NativeStatus:    NativePending,
		Code:            code,
		Message:         res.Msg,
		Details: &NsanoDetails{
			Reference:    strPtr(res.Reference),
			ProviderCode: strPtr(code),
			ProviderMsg:  strPtr(res.Msg),
		},
	}, nil
}

func (n *NsanoAdapter) InitiatePayment(ctx context.Context, intent PaymentIntent) (CreateResult, error) {
	req, err := n.BuildCreateRequest(intent)
	if err != nil {
		return CreateResult{}, err
	}
	status, raw, err := send(ctx, n.httpClient, ProviderNsano, req)
	if err != nil {
		return CreateResult{}, err
	}
	res, err := n.ParseCreateResponse(status, raw)
	if err != nil {
		return CreateResult{}, err
	}

	res.Contact = wirePhone(intent.Phone, dialIvoryCoast, nationalLenIvoryCoast)
	d := res.Details.(*NsanoDetails)
	d.Network = strPtr(strings.ToUpper(strings.TrimSpace(intent.Network)))
	d.Msisdn = strPtr(res.Contact)
	d.AuthorRefID = strPtr(n.authorRef(intent.RefID))
	return res, nil
}

// nsanoResultStatus translates a Fusion result code into the shared native vocabulary.
func nsanoResultStatus(code string) string {
	switch strings.TrimSpace(code) {
	case nsanoCodeSuccess:
		return NativeSuccess
	case nsanoCodePending, "":
		return NativePending
	default:
		return NativeFail
	}
}

type nsanoQueryResponse struct {
	Code any             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
}

type nsanoQueryMsg struct {
	Date       string `json:"date"`
	Type       string `json:"type"`
	SendingHse *struct {
		BalAfter any `json:"balAfter"`
		UserID   any `json:"userID"`
		Result   *struct {
			Code          any    `json:"code"`
			Msg           string `json:"msg"`
			SystemCode    any    `json:"system_code"`
			SystemMsg     string `json:"system_msg"`
			TransactionID any    `json:"transactionID"`
		} `json:"result"`
	} `json:"sendingHse"`
}

func (n *NsanoAdapter) QueryStatus(ctx context.Context, q StatusQuery) (StatusResult, error) {
	ref := n.authorRef(q.RefID)
	status, raw, err := send(ctx, n.httpClient, ProviderNsano, &OutboundRequest{
		Method: http.MethodGet,
		URL: n.cfg.BaseURL + "/fusion/tp/metadata/house/receiving/refID/" +
			url.PathEscape(ref) + "/" + url.PathEscape(n.cfg.APIKey),
		Header: http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		return StatusResult{}, err
	}
	if !is2xx(status) {
		return StatusResult{}, unavailable(ProviderNsano, fmt.Sprintf("query returned http %d", status), nil)
	}

	var res nsanoQueryResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return StatusResult{}, unavailable(ProviderNsano, "decode query response", err)
	}
	if code := cast.ToString(res.Code); code != nsanoCodeSuccess {
		return StatusResult{}, &ProviderError{Provider: ProviderNsano, Code: code, Message: strings.Trim(string(res.Msg), `"`)}
	}

	var msg nsanoQueryMsg
	dec := json.NewDecoder(bytes.NewReader(res.Msg))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return StatusResult{}, unavailable(ProviderNsano, "decode query metadata", err)
	}

	d := &NsanoDetails{
		Date: strPtr(msg.Date),
		Type: strPtr(msg.Type),
	}
	native := NativePending
	if hse := msg.SendingHse; hse != nil {
		d.BalanceAfter = strPtr(cast.ToString(hse.BalAfter))
		d.UserID = strPtr(cast.ToString(hse.UserID))
		if r := hse.Result; r != nil {
			code := cast.ToString(r.Code)
			native = nsanoResultStatus(code)
			d.ProviderCode = strPtr(code)
			d.ProviderMsg = strPtr(r.Msg)
			d.SystemCode = strPtr(cast.ToString(r.SystemCode))
			d.SystemMsg = strPtr(r.SystemMsg)
			d.TransactionID = strPtr(cast.ToString(r.TransactionID))
		}
	}

	return StatusResult{ProviderOrderID: q.ProviderOrderID, NativeStatus: native, Details: d}, nil
}

type nsanoCallback struct {
	Msg           string `json:"msg"`
	Code          any    `json:"code"`
	SystemMsg     string `json:"system_msg"`
	SystemCode    any    `json:"system_code"`
	AuthorRefID   string `json:"authorRefID"`
	UserID        any    `json:"userID"`
	TransactionID any    `json:"transactionID"`
	Network       string `json:"network"`
	Reference     string `json:"reference"`
	BalBefore     any    `json:"balBefore"`
	BalAfter      any    `json:"balAfter"`
	MetadataID    any    `json:"metadataID"`
	RefID         string `json:"refID"`
	AuthorRef     string `json:"author_ref"`
	Date          string `json:"date"`
	Type          string `json:"type"`
}

func (n *NsanoAdapter) decodeCallback(raw []byte) (nsanoCallback, string, error) {
	var cb nsanoCallback
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&cb); err != nil {
		return cb, "", fmt.Errorf("nsano callback: %v: %w", err, ErrInvalidCallback)
	}
	if cb.Code == nil {
		return cb, "", fmt.Errorf("nsano callback: missing code: %w", ErrInvalidCallback)
	}
	ref := n.correlate(cb)
	if ref == "" {
		return cb, "", fmt.Errorf("nsano callback: missing refID and authorRefID: %w", ErrInvalidCallback)
	}
	return cb, ref, nil
}

// correlate recovers the merchant reference from refID, or from authorRefID minus the short
// name prefix.
func (n *NsanoAdapter) correlate(cb nsanoCallback) string {
	if ref := strings.TrimSpace(cb.RefID); ref != "" {
		return strings.TrimPrefix(ref, n.cfg.ShortName)
	}
	if ref := strings.TrimSpace(cb.AuthorRefID); ref != "" {
		return strings.TrimPrefix(ref, n.cfg.ShortName)
	}
	return ""
}

// VerifyCallback only checks the shape: Fusion callbacks are unsigned.
func (n *NsanoAdapter) VerifyCallback(raw []byte) error {
	if _, _, err := n.decodeCallback(raw); err != nil {
		return err
	}
	if !n.verifier.Verify(raw, "") {
		return fmt.Errorf("nsano callback rejected: %w", ErrAuthentication)
	}
	return nil
}

func (n *NsanoAdapter) ParseCallback(raw []byte) (CallbackResult, error) {
	cb, ref, err := n.decodeCallback(raw)
	if err != nil {
		return CallbackResult{}, err
	}
	code := cast.ToString(cb.Code)

	return CallbackResult{
		RefID:        ref,
		NativeStatus: nsanoResultStatus(code),
		Details: &NsanoDetails{
			Network:       strPtr(cb.Network),
			AuthorRefID:   strPtr(cb.AuthorRefID),
			AuthorRef:     strPtr(cb.AuthorRef),
			Reference:     strPtr(cb.Reference),
			ProviderCode:  strPtr(code),
			ProviderMsg:   strPtr(cb.Msg),
			SystemCode:    strPtr(cast.ToString(cb.SystemCode)),
			SystemMsg:     strPtr(cb.SystemMsg),
			TransactionID: strPtr(cast.ToString(cb.TransactionID)),
			UserID:        strPtr(cast.ToString(cb.UserID)),
			BalanceBefore: strPtr(cast.ToString(cb.BalBefore)),
			BalanceAfter:  strPtr(cast.ToString(cb.BalAfter)),
			MetadataID:    strPtr(cast.ToString(cb.MetadataID)),
			Date:          strPtr(cb.Date),
			Type:          strPtr(cb.Type),
		},
	}, nil
}
