package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/commercekit/authnet-gateway/internal/adapters/authnet"
	"github.com/commercekit/authnet-gateway/internal/adapters/logging"
	"github.com/commercekit/authnet-gateway/internal/adapters/postgres"
	redisadapter "github.com/commercekit/authnet-gateway/internal/adapters/redis"
	"github.com/commercekit/authnet-gateway/internal/config"
	"github.com/commercekit/authnet-gateway/internal/gateway"
	"github.com/commercekit/authnet-gateway/internal/handlers/webhook"
	"github.com/commercekit/authnet-gateway/internal/services/payment"
	"github.com/commercekit/authnet-gateway/internal/services/subscription"
	"github.com/commercekit/authnet-gateway/internal/services/tokenization"
	"github.com/commercekit/authnet-gateway/pkg/observability"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := newLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(ctx, &postgres.Config{
		DatabaseURL: cfg.Database.ConnectionString(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
	}, zapLogger)
	cancel()
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := redisadapter.NewClient(cfg.Redis.URL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	db := postgres.NewDBExecutor(pool)
	txRepo := postgres.NewTransactionRepository(db)
	subRepo := postgres.NewSubscriptionRepository(db)
	profileRepo := postgres.NewCustomerProfileRepository(db)
	tokenRepo := postgres.NewPaymentTokenRepository(db)
	refundRepo := postgres.NewRefundRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)

	locker := redisadapter.NewLocker(redisClient, zapLogger)

	client := authnet.NewClient(&authnet.Config{
		Timeout:       time.Duration(cfg.Gateway.Timeout) * time.Second,
		International: cfg.Gateway.International,
	}, zapLogger)
	resolver := authnet.Resolver{}

	logger := logging.NewZapLogger(zapLogger)

	tokenSvc := tokenization.NewService(db, profileRepo, tokenRepo, settingsRepo, client, resolver, logger)
	paymentSvc := payment.NewService(db, txRepo, subRepo, refundRepo, settingsRepo, client, client, resolver, tokenSvc, logger)
	subscriptionSvc := subscription.NewService(db, subRepo, txRepo, settingsRepo, client, client, resolver, locker, tokenSvc, paymentSvc, paymentSvc, logger)

	gw := gateway.New(paymentSvc, subscriptionSvc, tokenSvc, client, settingsRepo, resolver, logger)

	if cfg.Server.NotifyBaseURL != "" {
		regCtx, regCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := gw.EnsureWebhookRegistrations(regCtx, cfg.Server.NotifyBaseURL+"/webhooks/authnet"); err != nil {
			zapLogger.Warn("webhook registration failed", zap.Error(err))
		}
		regCancel()
	}

	silentPost := webhook.NewSilentPostHandler(subRepo, settingsRepo, paymentSvc, zapLogger)
	signedWebhook := webhook.NewSignedWebhookHandler(subRepo, txRepo, settingsRepo, client, paymentSvc, resolver, locker, zapLogger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/authnet", signedWebhook.HandleWebhook)
	mux.HandleFunc("POST /webhooks/authnet/silent-post", silentPost.HandleSilentPost)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthChecker := observability.NewHealthChecker(pool, redisClient)
	metricsServer := observability.StartMetricsServer(fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker, zapLogger)

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := observability.ShutdownMetricsServer(metricsServer); err != nil {
		zapLogger.Error("metrics server shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
