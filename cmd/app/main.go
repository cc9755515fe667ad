// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logistics-payment-engine/internal/application"
	"logistics-payment-engine/internal/config"
	"logistics-payment-engine/internal/domain/ports/adapter"
	payAdapters "logistics-payment-engine/internal/infra/adapters/payment"
	pg "logistics-payment-engine/internal/infra/db/postgres"
	"logistics-payment-engine/internal/infra/logging"
	"logistics-payment-engine/internal/infra/metrics"
	red "logistics-payment-engine/internal/infra/redis"
	"logistics-payment-engine/internal/infra/sched"
	"logistics-payment-engine/internal/infra/web"
	"logistics-payment-engine/internal/infra/worker"
	"logistics-payment-engine/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	walletRepo := pg.NewWalletRepo(pool)
	txnRepo := pg.NewTransactionRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	refundRepo := pg.NewRefundRepo(pool)
	auditRepo := pg.NewAuditRepo(pool)
	deliveryRepo := pg.NewDeliveryRepo(pool)
	configRepo := red.NewConfigRepoCacheDecorator(pg.NewConfigRepo(pool), redisClient, cfg.Redis.TTL)
	tm := pg.NewTxManager(pool)

	// ---- Gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Gateway.Noop {
		gateway = payAdapters.NewNoopPaymentGateway()
		logger.Warn().Msg("using noop payment gateway; no real money moves")
	} else {
		gateway, err = payAdapters.NewRazorpayGateway(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("gateway init failed")
		}
	}
	logger.Info().Str("gateway", gateway.Name()).Msg("payment gateway ready")

	// ---- Use cases ----
	audit := usecase.NewAuditLogger(auditRepo, logger)
	commission := usecase.NewCommissionCalculator(configRepo, logger)
	escrowUC := usecase.NewEscrowUseCase(txnRepo, walletRepo, configRepo, commission, gateway, tm, locker, audit, cfg.Gateway.Timeout, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, txnRepo, walletRepo, configRepo, gateway, tm, locker, audit, cfg.Gateway.Timeout, logger)
	refundUC := usecase.NewRefundUseCase(refundRepo, escrowUC, audit, logger)
	reconcileUC := usecase.NewReconcileUseCase(txnRepo, walletRepo, subRepo, refundRepo, gateway, tm, audit, cfg.Scheduler.FailAfter, logger)

	facade := application.NewPaymentFacade(escrowUC, subUC, refundUC, deliveryRepo, configRepo, audit, logger)

	// ---- Background workers ----
	workerPool := worker.NewPool(cfg.Scheduler.Workers)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	billing := sched.NewBillingScheduler(cfg.Scheduler.BillingInterval, cfg.Scheduler.BillingBatchSize, subUC, logger)
	go func() { _ = billing.Run(ctx, workerPool) }()

	reconciler := sched.NewTransactionReconciler(cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileAfter, cfg.Scheduler.ReconcileBatch, reconcileUC, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP API ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret, 30*time.Minute)
	apiServer := web.NewServer(facade, auth, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: apiServer.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = server.Shutdown(shCtx)
	cancel()
}
