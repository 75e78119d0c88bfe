package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/andreysiniy/tg-med-bot/internal/api/router"
	"github.com/andreysiniy/tg-med-bot/internal/backend"
	"github.com/andreysiniy/tg-med-bot/internal/config"
	"github.com/andreysiniy/tg-med-bot/internal/dialog"
	"github.com/andreysiniy/tg-med-bot/internal/http/handlers"
	"github.com/andreysiniy/tg-med-bot/internal/intent"
	"github.com/andreysiniy/tg-med-bot/internal/observability/metrics"
	"github.com/andreysiniy/tg-med-bot/internal/session"
	"github.com/andreysiniy/tg-med-bot/internal/users"
	"github.com/andreysiniy/tg-med-bot/internal/webchat"
	"github.com/andreysiniy/tg-med-bot/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting tg-med-bot",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	promRegistry := prometheus.NewRegistry()
	dialogMetrics := metrics.NewDialogMetrics(promRegistry)
	backendMetrics := metrics.NewBackendMetrics(promRegistry)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	cancel()

	registry := users.NewRegistry(redisClient, logger.Component("users"))

	gateway := backend.NewClient(cfg.BackendBaseURL, logger.Component("backend"),
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithMetrics(backendMetrics),
	)

	sessions := session.NewStore(session.WithIdleTTL(cfg.SessionIdleTTL))

	engineOpts := []dialog.EngineOption{
		dialog.WithMetrics(dialogMetrics),
		dialog.WithDateWindow(cfg.DateWindowDays),
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := intent.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("gemini init failed", "error", err)
			os.Exit(1)
		}
		defer func() { _ = gemini.Close() }()
		classifier := intent.NewClassifier(gemini, logger.Component("intent"),
			intent.WithTimeout(cfg.IntentTimeout))
		engineOpts = append(engineOpts, dialog.WithClassifier(classifier))
		logger.Info("intent classification enabled", "model", cfg.GeminiModelID)
	} else {
		logger.Info("intent classification disabled, free text gets the rephrase reply")
	}

	engine := dialog.NewEngine(gateway, sessions, registry, logger.Component("dialog"), engineOpts...)

	r := router.New(&router.Config{
		Logger:             logger.Component("http"),
		Webhook:            handlers.NewWebhookHandler(engine, logger.Component("webhook")),
		WebChat:            webchat.NewHandler(engine, logger.Component("webchat")),
		MetricsHandler:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // backend calls plus LLM classification
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
