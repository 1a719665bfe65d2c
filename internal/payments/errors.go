package payments

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrDuplicateReference    = errors.New("payment reference already exists")
	ErrProviderUnavailable   = errors.New("payment provider unavailable")
	ErrProviderNotConfigured = errors.New("payment provider not configured")
	ErrAuthentication        = errors.New("callback authentication failed")
	ErrNotFound              = errors.New("payment record not found")
	ErrInvalidCallback       = errors.New("invalid callback structure")
	ErrMissingCredentials    = errors.New("missing provider credentials")
	ErrUndeterminedProvider  = errors.New("unable to determine payment provider")
)

// ProviderError is a definitive rejection returned by a provider.
type ProviderError struct {
	Provider Provider
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s rejected request: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s rejected request: code=%s %s", e.Provider, e.Code, e.Message)
}

func unavailable(p Provider, what string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s %s: %w", p, what, ErrProviderUnavailable)
	}
	return fmt.Errorf("%s %s: %v: %w", p, what, cause, ErrProviderUnavailable)
}
