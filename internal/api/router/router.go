// Package router assembles the bot's HTTP surface: health, metrics, the
// webhook transport and the WebSocket transport.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/andreysiniy/tg-med-bot/internal/http/handlers"
	httpmiddleware "github.com/andreysiniy/tg-med-bot/internal/http/middleware"
	"github.com/andreysiniy/tg-med-bot/internal/webchat"
	"github.com/andreysiniy/tg-med-bot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Webhook            *handlers.WebhookHandler
	WebChat            *webchat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests per second per client IP; zero disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.Webhook.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(chat chi.Router) {
		if cfg.RateLimitPerSecond > 0 {
			chat.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		}
		chat.Post("/webhook/message", cfg.Webhook.HandleMessage)
		if cfg.WebChat != nil {
			chat.Get("/ws", cfg.WebChat.HandleWebSocket)
		}
	})

	return r
}
