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

	"github.com/jabinweb/sciocare-sub001/internal/config"
	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/adapter"
	"github.com/jabinweb/sciocare-sub001/internal/infra/alert"
	"github.com/jabinweb/sciocare-sub001/internal/infra/api"
	pg "github.com/jabinweb/sciocare-sub001/internal/infra/db/postgres"
	"github.com/jabinweb/sciocare-sub001/internal/infra/logging"
	"github.com/jabinweb/sciocare-sub001/internal/infra/mail"
	"github.com/jabinweb/sciocare-sub001/internal/infra/metrics"
	"github.com/jabinweb/sciocare-sub001/internal/infra/payment"
	red "github.com/jabinweb/sciocare-sub001/internal/infra/redis"
	"github.com/jabinweb/sciocare-sub001/internal/infra/sched"
	"github.com/jabinweb/sciocare-sub001/internal/infra/worker"
	"github.com/jabinweb/sciocare-sub001/internal/resilience"
	"github.com/jabinweb/sciocare-sub001/internal/usecase"
)

// Set via -ldflags at build time.
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
	logging.Global = *logger

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	pg.StartPoolStatsReporter(ctx, pool, 30*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	errRepo := pg.NewErrorLogRepo(pool)

	// ---- Gateways ----
	razorpay := payment.NewRazorpayGateway(cfg.Payment.Razorpay.KeySecret, cfg.Payment.Razorpay.WebhookSecret)
	cashfree := payment.NewCashfreeClient(
		cfg.Payment.Cashfree.AppID,
		cfg.Payment.Cashfree.SecretKey,
		cfg.Payment.Cashfree.BaseURL,
		cfg.Payment.Cashfree.Sandbox,
	)
	cfBreaker := resilience.NewBreaker("cashfree", cfg.Breaker.Threshold, cfg.Breaker.ResetTimeout,
		resilience.WithStateHook(func(name string, state resilience.BreakerState) {
			metrics.SetBreakerState(name, string(state))
		}))

	// ---- Notification plumbing ----
	var mailer adapter.Mailer = mail.NoopMailer{}
	if cfg.Mail.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	} else {
		logger.Warn().Msg("mail.host not set, outbound mail disabled")
	}
	var alerter adapter.AlertSender = alert.NoopAlerter{}
	if cfg.Alert.TelegramToken != "" {
		alerter, err = alert.NewTelegramAlerter(cfg.Alert.TelegramToken, cfg.Alert.ChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram alerter init failed")
		}
	}
	sink := logging.NewErrorSink(errRepo, alerter, mailer, cfg.Mail.AdminEmail, logger)

	wpool := worker.NewPool(cfg.Server.Workers, logger)
	wpool.Start(ctx)
	defer wpool.Stop()

	// ---- Use cases ----
	retryOpts := resilience.RetryOptions{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
		OnRetry: func(name string, attempt int) {
			metrics.PaymentRetryAttempts.WithLabelValues(name).Inc()
		},
	}
	provisionUC := usecase.NewProvisionUseCase(subRepo, txManager, logger)
	notifyUC := usecase.NewNotificationUseCase(mailer, wpool, cfg.Mail.AdminEmail, resilience.LightRetry, logger)
	reconcileUC := usecase.NewReconcileUseCase(payRepo, provisionUC, notifyUC, razorpay, cashfree, cfBreaker, retryOpts, locker, logger)
	webhookUC := usecase.NewWebhookUseCase(payRepo, provisionUC, notifyUC, razorpay, locker, logger)

	// ---- HTTP API ----
	auth := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	srv := api.NewServer(reconcileUC, webhookUC, subRepo, errRepo, auth, rateLimiter, sink, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Background workers ----
	reconcileWorker := sched.NewReconcileWorker(
		cfg.Sched.ReconcileInterval,
		cfg.Sched.StaleAfter,
		cfg.Sched.ReconcileBatch,
		payRepo,
		reconcileUC,
		logger,
	)
	go func() { _ = reconcileWorker.Run(ctx) }()

	expiryWorker := sched.NewExpiryWorker(cfg.Sched.ExpiryInterval, subRepo, logger)
	go func() { _ = expiryWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	cancel()
}
