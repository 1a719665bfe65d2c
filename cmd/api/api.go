package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paygate/docs" //this is required to generate swagger docs
	"paygate/internal/auth"
	"paygate/internal/config"
	"paygate/internal/domain/paymentsrepo"
	"paygate/internal/payments"
	"paygate/internal/ratelimiter"
	"paygate/internal/reconcile"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// paymentEngine is the slice of reconcile.Engine the handlers use.
type paymentEngine interface {
	CreatePayment(ctx context.Context, provider payments.Provider, intent payments.PaymentIntent) (*reconcile.CreateOutcome, error)
	PaymentStatus(ctx context.Context, refID string) (*paymentsrepo.Payment, error)
	HandleCallback(ctx context.Context, provider payments.Provider, raw []byte) (*reconcile.CallbackOutcome, error)
	ListPayments(ctx context.Context, f paymentsrepo.ListFilter) ([]*paymentsrepo.Payment, int, error)
	SweepStale(ctx context.Context, olderThan time.Duration, limit int) (reconcile.SweepResult, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type application struct {
	config      *config.Config
	logger      *zap.SugaredLogger
	engine      paymentEngine
	db          pinger
	providers   []payments.Provider
	tokens      auth.TokenChecker
	rateLimiter ratelimiter.Limiter
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(app.RateLimiterMiddleware)

	// Outbound provider calls are bounded separately; this covers everything else.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.Addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		// Providers push here; OPay is authenticated by its signature, the others by shape.
		r.Route("/payments/callback", func(r chi.Router) {
			r.Use(app.IPAllowlistMiddleware)
			r.Post("/opay", app.callbackHandler(payments.ProviderOPay))
			r.Post("/mpesa", app.callbackHandler(payments.ProviderMpesa))
			r.Post("/nsano", app.callbackHandler(payments.ProviderNsano))
		})

		r.Group(func(r chi.Router) {
			r.Use(app.APITokenMiddleware)

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", app.createPaymentHandler)
				r.Get("/", app.listPaymentsHandler)
				r.Get("/{refID}", app.getPaymentStatusHandler)
			})
			r.Post("/payment-status", app.paymentStatusHandler)

			r.Get("/available-networks", app.availableNetworksHandler)
			r.Post("/available-networks", app.availableNetworksHandler)
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.ExternalURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.Addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.Addr, "env", app.config.Env, "providers", app.providers)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.Addr, "env", app.config.Env)

	return nil
}
