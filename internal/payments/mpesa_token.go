package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/oauth2"
)

// darajaTokenSource fetches client-credentials tokens from the Daraja OAuth endpoint and
// caches the current one until it expires. The lock guards the cached token only, never the
// HTTP call, so concurrent refreshes may each fetch a token.
type darajaTokenSource struct {
	client  *http.Client
	url     string
	key     string
	secret  string
	timeout time.Duration

	mu  sync.Mutex
	tok *oauth2.Token
}

type darajaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   any    `json:"expires_in"` // Daraja sends a string
}

func newDarajaTokenSource(client *http.Client, baseURL, key, secret string) *darajaTokenSource {
	return &darajaTokenSource{
		client:  client,
		url:     baseURL + "/oauth/v1/generate?grant_type=client_credentials",
		key:     key,
		secret:  secret,
		timeout: DefaultTimeout,
	}
}

// Token returns the cached token while it is valid and otherwise fetches a new one bounded by
// ctx.
func (s *darajaTokenSource) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	tok := s.tok
	s.mu.Unlock()
	if tok.Valid() {
		return tok, nil
	}

	tok, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.tok = tok
	s.mu.Unlock()
	return tok, nil
}

func (s *darajaTokenSource) fetch(ctx context.Context) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("mpesa token request: %w", err)
	}
	req.SetBasicAuth(s.key, s.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, unavailable(ProviderMpesa, "token request", err)
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, unavailable(ProviderMpesa, fmt.Sprintf("token request returned http %d", resp.StatusCode), nil)
	}

	var body darajaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, unavailable(ProviderMpesa, "decode token", err)
	}
	if body.AccessToken == "" {
		return nil, unavailable(ProviderMpesa, "empty access token", nil)
	}

	tok := &oauth2.Token{AccessToken: body.AccessToken, TokenType: "Bearer"}
	if secs := cast.ToInt64(body.ExpiresIn); secs > 0 {
		tok.Expiry = time.Now().Add(time.Duration(secs) * time.Second)
	}
	return tok, nil
}
