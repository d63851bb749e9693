package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trustgate/internal/audit"
	"trustgate/internal/payment"
	"trustgate/internal/platform/config"
	"trustgate/internal/platform/httpserver"
	"trustgate/internal/platform/logger"
	"trustgate/internal/platform/metrics"
	platformredis "trustgate/internal/platform/redis"
	"trustgate/internal/query"
	"trustgate/internal/storage"
	"trustgate/internal/storage/postgres"
	httptransport "trustgate/internal/transport/http"
	"trustgate/internal/trust"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var registryStore storage.RegistryStore
	var ledger storage.PaymentLedger
	dbStatus := func(context.Context) string { return "memory" }

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		registryStore = postgres.NewRegistryStore(pool)
		ledger = postgres.NewPaymentLedger(pool)
		dbStatus = func(ctx context.Context) string {
			if err := pool.Ping(ctx); err != nil {
				return "unreachable"
			}
			return "connected"
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		registryStore = storage.NewInMemoryRegistryStore()
		ledger = storage.NewInMemoryPaymentLedger()
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	publisher, err := audit.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.Error("kafka producer setup failed", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	ledger = audit.WrapLedger(ledger, publisher)

	m := metrics.New()

	var gate payment.Gate
	switch cfg.Payment.Mode {
	case config.PaymentModeLive:
		facilitator := payment.NewHTTPFacilitator(cfg.Payment.FacilitatorURL, cfg.Payment.Timeout)
		gate = payment.NewLiveGate(facilitator, ledger, log, m, cfg.Payment.Network, cfg.Payment.MerchantAddress, cfg.Payment.Timeout)
	default:
		gate = payment.NewMockGate(ledger, log, m, cfg.Payment.Network, cfg.Payment.MerchantAddress)
	}

	rules := trust.NewRuleset()
	rules.SetStandard(trust.ContextCopyTrading, trustThresholds(cfg.ThresholdsFor(trust.ContextCopyTrading)))
	rules.SetInverted(trust.ContextRuggerCheck, trustThresholds(cfg.ThresholdsFor(trust.ContextRuggerCheck)))

	aggregator := trust.New(registryStore, rules)
	service := query.New(gate, aggregator, log)
	handler := httptransport.New(service, registryStore, cfg.Payment.Prices, cfg.Version, dbStatus, log, m)
	router := httptransport.NewRouter(handler, log, httptransport.RouterOptions{
		RedisClient:     redisClient,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting trustgate",
		"addr", cfg.Addr,
		"payment_mode", cfg.Payment.Mode,
		"network", cfg.Payment.Network,
		"version", cfg.Version,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func trustThresholds(t config.Thresholds) trust.Thresholds {
	return trust.Thresholds{Allow: t.Allow, Limit: t.Limit, Review: t.Review}
}
