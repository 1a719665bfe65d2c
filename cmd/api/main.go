package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"paygate/internal/auth"
	"paygate/internal/config"
	"paygate/internal/db"
	"paygate/internal/domain/storage"
	"paygate/internal/logger"
	"paygate/internal/payments"
	"paygate/internal/ratelimiter"
	"paygate/internal/reconcile"
)

var version = "1.0.0"

//	@title			Paygate API
//	@description	Payment orchestration and reconciliation for OPay, M-Pesa and Nsano.

//	@contact.name	API Support
//	@contact.url	http://www.swagger.io/support
//	@contact.email	support@swagger.io

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logger.New(cfg.Env)
	defer logger.Sync()

	// Database
	pool, err := db.New(cfg.DB.Addr, int32(cfg.DB.MaxConns), cfg.DB.MaxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	store := storage.NewContainer(pool)

	// Providers
	manager, err := payments.NewManager(cfg.Providers, payments.NewHTTPClient(cfg.OutboundTimeout))
	if err != nil {
		logger.Fatalw("payment providers", "error", err)
	}
	enabled := manager.Enabled()
	if len(enabled) == 0 {
		logger.Warn("no payment provider is configured; every create request will fail")
	}

	refs, err := payments.NewReferenceGenerator(cfg.ReferenceSalt)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Merchant callback forwarding
	var (
		notifier  reconcile.Notifier
		forwarder *reconcile.Forwarder
	)
	if cfg.Callback.URL != "" {
		var signer auth.Signer
		if cfg.Callback.SigningSecret != "" {
			signer = auth.NewJWTEventSigner(cfg.Callback.SigningSecret, "paygate")
		}
		forwarder = reconcile.NewForwarder(reconcile.ForwarderConfig{
			URL:         cfg.Callback.URL,
			MaxAttempts: cfg.Callback.MaxAttempts,
			QueueSize:   cfg.Callback.QueueSize,
		}, signer, logger)
		forwarder.Start(ctx)
		notifier = forwarder
	}

	engine := reconcile.NewEngine(reconcile.Deps{
		Repos:       &store.Repos,
		Gateways:    manager,
		References:  refs,
		Notifier:    notifier,
		Logger:      logger,
		PollTimeout: cfg.OutboundTimeout,
	})

	tokens, err := auth.NewStaticTokenAuthenticator(cfg.Auth.Token, cfg.Auth.TokenHash)
	if err != nil {
		logger.Fatalw("api token", "error", err)
	}

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.RateLimiter.RequestsPerTimeFrame,
		cfg.RateLimiter.TimeFrame,
	)
	go rateLimiter.Run(ctx)

	app := &application{
		config:      cfg,
		logger:      logger,
		engine:      engine,
		db:          store,
		providers:   enabled,
		tokens:      tokens,
		rateLimiter: rateLimiter,
	}

	if cfg.Sweep.Interval > 0 {
		app.sweepStalePayments(ctx, cfg.Sweep.Interval, cfg.Sweep.StaleAfter, cfg.Sweep.BatchSize)
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		s := pool.Stat()
		return map[string]int64{
			"total_conns":    int64(s.TotalConns()),
			"idle_conns":     int64(s.IdleConns()),
			"acquired_conns": int64(s.AcquiredConns()),
			"acquire_count":  s.AcquireCount(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	err = app.run(mux)
	cancel()
	if forwarder != nil {
		forwarder.Wait()
	}
	if err != nil {
		logger.Fatal(err)
	}
}
