package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gwi.com/llm-chat-service/internal/observability"
)

func NewRouter(apiHandler *APIHandler, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(metricsMiddleware(metrics))

	r.Get("/health", apiHandler.HealthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Public routes
	r.Post("/member", apiHandler.SignupHandler)
	r.Post("/member/log-in", apiHandler.LoginHandler)

	// Token-carrying routes; each service checks the token itself.
	r.Route("/chat/thread", func(r chi.Router) {
		r.Post("/", apiHandler.ChatHandler)
		r.Get("/", apiHandler.GetThreadHandler)
		r.Delete("/{id}", apiHandler.DeleteThreadHandler)
	})
	r.Post("/feedback/{chatId}", apiHandler.SaveFeedbackHandler)

	r.Route("/admin/feedback", func(r chi.Router) {
		r.Post("/{id}", apiHandler.UpdateFeedbackHandler)
		r.Get("/{id}", apiHandler.GetFeedbackHandler)
	})
	r.Get("/log", apiHandler.ActivityHandler)
	r.Get("/report", apiHandler.ReportHandler)

	return r
}

// metricsMiddleware counts requests by matched route pattern, so path
// parameters do not blow up label cardinality.
func metricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.RecordRequest(route, r.Method, status)
		})
	}
}
