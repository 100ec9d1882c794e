package router

import (
	"net/http"
	"time"

	"momo-service/internal/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func SetupRoutes(
	paymentHandler *handler.PaymentHandler,
	ipnHandler *handler.IPNHandler,
	adminHandler *handler.AdminHandler,
	adminToken string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Admin-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/api/v1/payments/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		// Payment initiation, one route per billable purpose family.
		r.Group(func(r chi.Router) {
			r.Use(handler.RequireUser)

			r.Post("/maid-onboarding/initiate", paymentHandler.HandleMaidOnboarding)
			r.Post("/home-nurse-onboarding/initiate", paymentHandler.HandleHomeNurseOnboarding)
			r.Post("/homeowner/initiate", paymentHandler.HandleHomeowner)
			r.Post("/cleaning-company/initiate", paymentHandler.HandleCompany)
		})

		// Pesapal IPN; delivered as GET or POST depending on registration.
		r.Get("/pesapal/ipn", ipnHandler.HandleIPN)
		r.Post("/pesapal/ipn", ipnHandler.HandleIPN)

		// Operator surface.
		r.Route("/admin", func(r chi.Router) {
			r.Use(handler.RequireAdmin(adminToken))

			r.Get("/transactions", adminHandler.HandleListTransactions)
			r.Post("/transactions/{id}/reconcile", adminHandler.HandleReconcile)
			r.Post("/transactions/{id}/expire", adminHandler.HandleExpire)
		})
	})

	return r
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()))
		})
	}
}
