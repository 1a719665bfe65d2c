package main

import (
	"context"
	"time"
)

// sweepStalePayments polls pending payments that providers never called back about. It runs
// once immediately, then every interval, until ctx is done.
func (app *application) sweepStalePayments(ctx context.Context, interval, staleAfter time.Duration, batch int) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			res, err := app.engine.SweepStale(ctx, staleAfter, batch)
			if err != nil {
				app.logger.Errorw("stale payment sweep failed", "error", err)
			} else if res.Checked > 0 {
				app.logger.Infow("stale payment sweep", "checked", res.Checked, "resolved", res.Resolved, "failed", res.Failed)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
