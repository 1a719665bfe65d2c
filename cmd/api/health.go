package main

import (
	"context"
	"net/http"
	"time"
)

// healthCheckHandler godoc
//
//	@Summary		Healthcheck
//	@Description	Reports service status, version, enabled providers and database reachability.
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Failure		503	{object}	map[string]any
//	@Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"status":    "ok",
		"env":       app.config.Env,
		"version":   version,
		"providers": app.providers,
	}
	status := http.StatusOK

	if app.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.db.Ping(ctx); err != nil {
			app.logger.Errorw("health check: database unreachable", "error", err)
			data["status"] = "degraded"
			data["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			data["database"] = "ok"
		}
	}

	if err := writeJSON(w, status, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
