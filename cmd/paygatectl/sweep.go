package main

import (
	"encoding/json"
	"time"

	"paygate/internal/config"
	"paygate/internal/db"
	"paygate/internal/domain/storage"
	"paygate/internal/logger"
	"paygate/internal/payments"
	"paygate/internal/reconcile"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Poll providers once for payments stuck in PENDING",
		Long: `Query the provider of every PENDING payment that has not changed for --older-than
and apply the answer. Merchant callbacks are not forwarded from this command; the API
server forwards events for payments it resolves itself.

Examples:
  paygatectl sweep
  paygatectl sweep --older-than 30m --limit 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Env)
			defer log.Sync()

			pool, err := db.New(cfg.DB.Addr, int32(cfg.DB.MaxConns), cfg.DB.MaxIdleTime)
			if err != nil {
				return err
			}
			defer pool.Close()
			store := storage.NewContainer(pool)

			manager, err := payments.NewManager(cfg.Providers, payments.NewHTTPClient(cfg.OutboundTimeout))
			if err != nil {
				return err
			}

			engine := reconcile.NewEngine(reconcile.Deps{
				Repos:       &store.Repos,
				Gateways:    manager,
				Logger:      log,
				PollTimeout: cfg.OutboundTimeout,
			})

			res, err := engine.SweepStale(cmd.Context(), olderThan, limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 10*time.Minute, "only payments not updated for this long")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum payments to poll")
	return cmd
}
