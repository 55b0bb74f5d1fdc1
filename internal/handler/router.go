package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/jackesh4086/spr-price-check/internal/util"
)

// NewRouter configures the chi router with the middleware stack and all
// public and admin routes.
func NewRouter(verification *VerificationHandler, admin *AdminHandler, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"spr-price-check"}`))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/otp", func(r chi.Router) {
			r.Post("/request", verification.RequestCode)
			r.Post("/verify", verification.VerifyCode)
		})
		r.Get("/quote", verification.GetQuote)
		r.Get("/catalog", verification.GetCatalog)
		r.Get("/stores", verification.SearchStores)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", admin.Login)
			r.Get("/session", admin.Session)

			r.Group(func(r chi.Router) {
				r.Use(admin.RequireSession)
				r.Get("/data", admin.GetData)
				r.Put("/data", admin.ReplaceData)
				r.Put("/metadata", admin.UpdateMetadata)
				r.Post("/models", admin.AddModel)
				r.Put("/models/{id}", admin.UpdateModel)
				r.Delete("/models/{id}", admin.DeleteModel)
				r.Post("/issues", admin.AddIssue)
				r.Put("/issues/{id}", admin.UpdateIssue)
				r.Delete("/issues/{id}", admin.DeleteIssue)
				r.Post("/prices", admin.AddPrice)
				r.Put("/prices/{modelId}/{issueId}", admin.UpdatePrice)
				r.Delete("/prices/{modelId}/{issueId}", admin.DeletePrice)
				r.Put("/stores", admin.UpsertStore)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"method not allowed"}`))
	})

	return router
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
