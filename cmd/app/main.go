// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"retail-pos-billing/internal/config"
	pg "retail-pos-billing/internal/infra/db/postgres"
	"retail-pos-billing/internal/infra/logging"
	"retail-pos-billing/internal/infra/metrics"
	"retail-pos-billing/internal/infra/notify"
	"retail-pos-billing/internal/infra/payment"
	red "retail-pos-billing/internal/infra/redis"
	"retail-pos-billing/internal/infra/sched"
	"retail-pos-billing/internal/infra/web"
	"retail-pos-billing/internal/infra/worker"
	"retail-pos-billing/internal/usecase"

	"retail-pos-billing/internal/domain/ports/adapter"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (relaxed auth, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	entitlements := red.NewEntitlementCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	tenantRepo := pg.NewTenantRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	txnRepo := pg.NewGatewayTransactionRepo(pool)
	ledgerRepo := pg.NewBillingLedgerRepo(pool)
	auditRepo := pg.NewAuditRepo(pool)
	jobFailureRepo := pg.NewJobFailureRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Adapters ----
	gateway := payment.NewSTKGateway(&cfg.Gateway)
	var notifier adapter.Notifier = notify.NoopNotifier{}
	if cfg.Notify.EventsURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.Notify.EventsURL, logger)
	}

	// ---- Use cases ----
	engine := usecase.NewActivationEngine(planRepo, subRepo, tenantRepo, ledgerRepo, auditRepo, txManager, entitlements, notifier, logger)
	resolver := usecase.NewCorrelationResolver(subRepo, ledgerRepo, cfg.Billing.HeuristicWindow, logger)
	reconcileUC := usecase.NewReconcileUseCase(txnRepo, auditRepo, resolver, engine, logger)
	checkoutUC := usecase.NewCheckoutUseCase(tenantRepo, planRepo, subRepo, txnRepo, ledgerRepo, gateway, txManager, logger)
	adminUC := usecase.NewAdminBillingUseCase(ledgerRepo, jobFailureRepo, engine, logger)
	lifecycleUC := usecase.NewLifecycleUseCase(subRepo, planRepo, tenantRepo, jobFailureRepo, txManager, entitlements, notifier, logger)

	// ---- Background jobs ----
	pool2 := worker.NewPool(cfg.Billing.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	poller := sched.NewStatusPoller(txnRepo, jobFailureRepo, gateway, reconcileUC, locker, pool2,
		cfg.Billing.PollInterval, cfg.Billing.PollStaleAfter, cfg.Billing.PollMaxAttempts, logger)
	go func() { _ = poller.Run(ctx) }()

	sweeper := sched.NewSweepWorker(txnRepo, reconcileUC, locker, cfg.Billing.SweepInterval, logger)
	go func() { _ = sweeper.Run(ctx) }()

	expiry := sched.NewExpiryWorker(cfg.Billing.ExpiryInterval, lifecycleUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(&cfg.HTTP, checkoutUC, reconcileUC, adminUC, sweeper, cfg.Billing.Currency, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	_ = srv.Shutdown(context.Background())
}
