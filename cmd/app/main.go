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
	"time"

	"studycard-subscription/internal/config"
	pg "studycard-subscription/internal/infra/db/postgres"
	"studycard-subscription/internal/infra/i18n"
	"studycard-subscription/internal/infra/logging"
	"studycard-subscription/internal/infra/metrics"
	"studycard-subscription/internal/infra/notify"
	"studycard-subscription/internal/infra/payment"
	red "studycard-subscription/internal/infra/redis"
	"studycard-subscription/internal/infra/sched"
	"studycard-subscription/internal/infra/security"
	"studycard-subscription/internal/infra/web"
	"studycard-subscription/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging, debug level)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
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

	// ---- Billing key encryption ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 16 && len(encKey) != 24 && len(encKey) != 32 {
		logger.Warn().Msg("security.encryption_key not set or wrong length; falling back to dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	cipher, err := security.NewBillingKeyCipher(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("billing key cipher")
	}

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool, cipher)
	txManager := pg.NewTxManager(pool)

	// ---- Gateway ----
	gateway := payment.NewTossGateway(cfg.Toss.SecretKey, cfg.Toss.BaseURL, cfg.Toss.Timeout)

	// ---- Use cases ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, cfg.I18n.Lang)
	if err != nil {
		logger.Fatal().Err(err).Msg("translator")
	}
	notifier := notify.NewLogNotifier(translator, logger)
	orders := usecase.NewOrderIDGenerator()
	ledger := usecase.NewPaymentLedger(payRepo, txManager, orders, logger)
	subs := usecase.NewSubscriptionStore(subRepo, notifier, logger)
	checkout := usecase.NewCheckoutOrchestrator(ledger, subs, gateway, notifier, logger)
	reconciler := usecase.NewWebhookReconciler(ledger, subs, checkout, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, 24*time.Hour)
	srv := web.NewServer(checkout, reconciler, auth, cfg.Toss.WebhookSecret, logger)
	go func() {
		if err := srv.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Background workers ----
	renewal := sched.NewRenewalWorker(cfg.Scheduler.RenewalInterval, cfg.Scheduler.RenewalHorizon, cfg.Scheduler.LockTTL, checkout, locker, logger)
	go func() { _ = renewal.Run(ctx) }()

	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, cfg.Scheduler.LockTTL, subs, locker, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
