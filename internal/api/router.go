package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig holds transport settings.
type RouterConfig struct {
	CORSOrigins        []string
	RateLimitPerMinute int
	MaxBodyBytes       int64
}

// NewRouter builds the API handler: recovery, request id, CORS, metrics,
// rate limit, body limit, then per-route authentication.
func NewRouter(h *Handlers, auth *Authenticator, cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware, MetricsMiddleware)
	if cfg.RateLimitPerMinute > 0 {
		r.Use(RateLimitMiddleware(NewIPRateLimiter(cfg.RateLimitPerMinute)))
	}
	if cfg.MaxBodyBytes > 0 {
		r.Use(BodyLimitMiddleware(cfg.MaxBodyBytes))
	}

	api := r.PathPrefix("/api/transactions").Subrouter()
	api.Use(auth.Middleware)

	api.HandleFunc("", h.CreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/create", h.CreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("", h.ListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.GetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/{id}/status", h.AppendStatus).Methods(http.MethodPut, http.MethodPost)
	api.HandleFunc("/{id}/history", h.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/{id}/verify", h.VerifyTransaction).Methods(http.MethodGet)

	r.NotFoundHandler = RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeMessage(w, req, http.StatusNotFound, "route not found")
	}))

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
	)
	recovery := handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))

	return otelhttp.NewHandler(recovery(cors(r)), "ecosetu.api")
}
