package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"paygate/internal/payments"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem", "", "")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, "bad request", err.Error(), "")
}

func (app *application) validationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	fields, ok := validationErrors(err)
	if !ok {
		app.badRequestResponse(w, r, err)
		return
	}
	app.logger.Warnw("validation failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSON(w, http.StatusBadRequest, map[string]any{
		"message": "Validation failed",
		"errors":  fields,
	})
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, "not found", err.Error(), "")
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized", "", "")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized", "", "")
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path)

	writeJSONError(w, http.StatusForbidden, "forbidden", "", "")
}

func (app *application) badGatewayResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("provider unavailable", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadGateway, "payment provider unavailable", err.Error(), "")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter.String(), "", "")
}

// paymentErrorResponse maps the payments error vocabulary to HTTP.
func (app *application) paymentErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var perr *payments.ProviderError
	switch {
	case errors.As(err, &perr):
		app.logger.Warnw("provider rejected request", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusBadRequest, "Payment request rejected by provider", perr.Message, perr.Code)
	case errors.Is(err, payments.ErrDuplicateReference):
		app.logger.Warnw("duplicate reference", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusBadRequest, "Reference already exists", err.Error(), "02004")
	case errors.Is(err, payments.ErrUndeterminedProvider):
		app.logger.Warnw("undetermined provider", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusBadRequest, "Unable to determine payment provider", err.Error(), "")
	case errors.Is(err, payments.ErrValidation), errors.Is(err, payments.ErrProviderNotConfigured):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, payments.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, payments.ErrAuthentication):
		app.unauthorizedErrorResponse(w, r, err)
	case errors.Is(err, payments.ErrInvalidCallback):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, payments.ErrProviderUnavailable):
		app.badGatewayResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}
