package main

import (
	"fmt"
	"io"
	"net/http"

	"paygate/internal/payments"
)

const maxCallbackBytes = 1 << 20

type callbackAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// callbackHandler returns the push endpoint for one provider. The raw body is handed to the
// engine untouched because OPay signs the exact payload bytes.
//
//	@Summary		Provider callback
//	@Description	Receives a provider push, authenticates it and applies it to the payment.
//	@Tags			Callbacks
//	@Accept			json
//	@Produce		json
//	@Param			provider	path		string	true	"opay | mpesa | nsano"
//	@Success		200			{object}	callbackAck
//	@Failure		400			{object}	errorEnvelope
//	@Failure		401			{object}	errorEnvelope
//	@Failure		404			{object}	errorEnvelope
//	@Router			/payments/callback/{provider} [post]
func (app *application) callbackHandler(provider payments.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
		if err != nil {
			app.badRequestResponse(w, r, fmt.Errorf("read %s callback: %w", provider, err))
			return
		}

		out, err := app.engine.HandleCallback(r.Context(), provider, raw)
		if err != nil {
			app.paymentErrorResponse(w, r, err)
			return
		}

		msg := "Callback processed"
		if !out.Applied {
			msg = "Callback already processed"
		}
		app.logger.Infow("callback acknowledged", "provider", provider, "ref_id", out.Payment.RefID,
			"applied", out.Applied, "state", out.Payment.State)

		if err := writeJSON(w, http.StatusOK, callbackAck{Success: true, Message: msg}); err != nil {
			app.internalServerError(w, r, err)
		}
	}
}
