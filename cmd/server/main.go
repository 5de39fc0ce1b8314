package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/cmd/server/config"
	"storefront/internal/adapters/httpapi"
	"storefront/internal/cache"
	"storefront/internal/checkout"
	"storefront/internal/observability"
	"storefront/internal/payment"
	"storefront/internal/resilience"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	db, cleanupDB, err := buildDatabase(ctx)
	if err != nil {
		return err
	}
	defer cleanupDB()

	redisClient, cleanupRedis, err := buildRedisClient(ctx)
	if err != nil {
		return err
	}
	defer cleanupRedis()

	checkoutCfg, err := config.LoadCheckout()
	if err != nil {
		return err
	}
	providerCfg, err := config.LoadProvider()
	if err != nil {
		return err
	}
	httpCfg, err := config.LoadHTTP()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	// One shared breaker instance per process; its state machine is the
	// only cross-request mutable state besides the metrics registry.
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		MaxFailures: checkoutCfg.BreakerMaxFailures,
		ResetAfter:  checkoutCfg.BreakerResetTimeout,
		OnOpen:      metrics.AddBreakerOpen,
	})
	pending := cache.NewResilient(cache.NewPendingStore(redisClient), breaker)

	store, err := db.orderStore(ctx)
	if err != nil {
		return err
	}
	ledger := db.stockLedger()

	gateway := payment.NewGateway(payment.Config{
		BaseURL:      providerCfg.BaseURL,
		ClientID:     providerCfg.ClientID,
		ClientSecret: providerCfg.ClientSecret,
		Currency:     providerCfg.Currency,
		Timeout:      providerCfg.Timeout,
	}, resilience.RetryPolicy{
		MaxAttempts: providerCfg.TokenRetryMax,
		BaseDelay:   providerCfg.TokenRetryBase,
		MaxDelay:    providerCfg.TokenRetryMaxWait,
	})

	orchestrator := checkout.NewOrchestrator(ledger, store, store, pending, gateway, checkoutCfg.PendingTTL, log.Printf)
	compensator := checkout.NewCompensator(ledger, store, pending, log.Printf)

	limiter := resilience.NewRateLimiter(httpCfg.RateLimitInterval, httpCfg.RateLimitBurst)
	server := httpapi.NewServer(orchestrator, compensator, metrics, limiter, map[string]httpapi.HealthChecker{
		"postgres": db.ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}, log.Printf)

	srv := &http.Server{
		Addr:    httpCfg.Addr,
		Handler: server.Router(httpCfg.AllowedOrigins),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("checkout API listening on %s", httpCfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
