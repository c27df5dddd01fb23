package api

import (
	"net/http"
	"time"

	"github.com/example/ec-order-engine/internal/api/middleware"
	"github.com/example/ec-order-engine/internal/auth"
	"github.com/example/ec-order-engine/internal/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig holds the dependencies the router wires together.
type RouterConfig struct {
	Handlers   *Handlers
	JWTService *auth.JWTService
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	requireAuth := middleware.AuthMiddleware(cfg.JWTService)
	optionalAuth := middleware.OptionalAuthMiddleware(cfg.JWTService)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(withLogging)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/orders", func(r chi.Router) {
		r.With(optionalAuth).Post("/", h.PlaceOrder)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/cancel", h.CancelOrder)

			r.With(middleware.RequireAdmin).Put("/{id}/status", h.UpdateStatus)
			r.With(middleware.RequireAdmin).Put("/{id}/tracking", h.UpdateTracking)
		})
	})

	r.Route("/payment", func(r chi.Router) {
		// Called by the gateway, authenticated by signature only.
		r.Post("/webhook", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/create-order", h.CreatePaymentOrder)
			r.Post("/verify", h.VerifyPayment)
		})
	})

	return r
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Named("http").Info("request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
