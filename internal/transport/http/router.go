package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"trustgate/internal/platform/middleware"
)

// RouterOptions carries the optional pieces of the middleware chain.
type RouterOptions struct {
	// RedisClient enables rate limiting on free endpoints when non-nil.
	RedisClient     *redis.Client
	RateLimit       int
	RateLimitWindow time.Duration
}

// NewRouter wires all public endpoints with the middleware chain. Paid
// endpoints are protected by the payment gate inside the service; the rate
// limiter covers only the free surface.
func NewRouter(h *Handler, logger *slog.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))

	r.Group(func(free chi.Router) {
		free.Use(middleware.RateLimit(opts.RedisClient, opts.RateLimit, opts.RateLimitWindow, logger))
		free.Get("/v1/health", h.HandleHealth)
		free.Get("/v1/registries", h.HandleRegistries)
	})

	r.Post("/v1/trust/query", h.HandleTrustQuery)
	r.Get("/v1/trust/entity/{address}", h.HandleTrustEntity)
	r.Get("/v1/trust/top", h.HandleTrustTop)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
