// Package app wires configuration, storage, domain services, and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/stripeshop/internal/domain/checkout"
	"github.com/xenking/stripeshop/internal/domain/money"
	"github.com/xenking/stripeshop/internal/domain/settlement"
	"github.com/xenking/stripeshop/internal/handler"
	"github.com/xenking/stripeshop/internal/storage/postgres"
	"github.com/xenking/stripeshop/internal/stripe"
	"github.com/xenking/stripeshop/pkg/health"
	"github.com/xenking/stripeshop/pkg/httpmiddleware"
)

// newRootHandler assembles the server mux. The rate limiter guards client
// traffic on /api only: provider webhook deliveries and probe requests must
// never be throttled by a burst from some unrelated client IP.
func newRootHandler(routes http.Handler, healthSvc *health.Service, cfg *Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", httpmiddleware.Wrap(routes,
		httpmiddleware.RateLimit(cfg.RateLimit.Max, cfg.RateLimit.Window)))
	mux.Handle("/webhooks/stripe", routes)
	return mux
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, _ *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.NewService()
	healthSvc.AddReadiness("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLiveness("goroutines", time.Second, health.GoroutineCountCheck(10000))

	itemRepo := postgres.NewItemRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	var stripeOpts []stripe.Option
	if cfg.Stripe.BaseURL != "" {
		stripeOpts = append(stripeOpts, stripe.WithBaseURL(cfg.Stripe.BaseURL))
	}
	gateways := stripe.NewClientSet(cfg.SecretKeys(), stripeOpts...)
	if len(cfg.SecretKeys()) == 0 {
		lg.Warn("No Stripe keys configured, checkout is unavailable for every currency")
	}

	rates, err := cfg.RateTable()
	if err != nil {
		return err
	}
	converter := money.NewConverter(rates)

	builder := checkout.NewBuilder(gateways, converter,
		cfg.Checkout.SuccessURL, cfg.Checkout.CancelURL)
	checkoutSvc := checkout.NewService(itemRepo, orderRepo, builder, gateways)

	if cfg.Stripe.WebhookSecret == "" {
		lg.Warn("Stripe webhook secret is empty, accepting unsigned events")
	}
	verifier := stripe.NewWebhookVerifier(cfg.Stripe.WebhookSecret)
	reconciler := settlement.NewReconciler(verifier, orderRepo)

	h := handler.NewHandler(itemRepo, orderRepo, checkoutSvc, reconciler)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(newRootHandler(h.Routes(), healthSvc, cfg),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.Logging(),
		),
	}

	healthSvc.SetReady(true)

	// Graceful shutdown: flip readiness, let load balancers drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
