package main

import (
	"net/http"

	"paygate/internal/payments"
)

// availableNetworksHandler godoc
//
//	@Summary		Available networks
//	@Description	Lists the operators and pay methods of every enabled provider, keyed by market.
//	@Tags			Payments
//	@Produce		json
//	@Success		200	{object}	map[string]payments.Market
//	@Security		ApiKeyAuth
//	@Router			/available-networks [get]
func (app *application) availableNetworksHandler(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"networks": payments.AvailableNetworks(app.providers),
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}
