// Package http exposes the shopping list over a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"shoplist/internal/log"
	"shoplist/internal/services"
	"shoplist/internal/session"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "shoplist_session"
	requestHeader = "X-Request-ID"

	// viewTimeout bounds how long a request waits for its session to
	// publish a view reflecting the requested filter.
	viewTimeout = 5 * time.Second
)

// Deps are the collaborators a Server needs. Ready may be nil.
type Deps struct {
	Items             *services.ItemService
	Labels            *services.LabelService
	Sessions          *session.Manager
	Ready             func(ctx context.Context) error
	Logger            *log.Logger
	RequestsPerMinute int
}

type Server struct {
	http.Server
	items    *services.ItemService
	labels   *services.LabelService
	sessions *session.Manager
	ready    func(ctx context.Context) error
	logger   *log.Logger

	rateLimiter  *rateLimiter
	metrics      *apiMetrics
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		items:       deps.Items,
		labels:      deps.Labels,
		sessions:    deps.Sessions,
		ready:       deps.Ready,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(deps.RequestsPerMinute),
		metrics:     newAPIMetrics(),
		started:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("POST /api/items", s.handleCreateItem)
	mux.HandleFunc("DELETE /api/items", s.handleDeleteAllItems)
	mux.HandleFunc("GET /api/items/search", s.handleSearchItems)
	mux.HandleFunc("GET /api/items/{id}", s.handleGetItem)
	mux.HandleFunc("PUT /api/items/{id}", s.handleUpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)
	mux.HandleFunc("POST /api/items/{id}/purchase", s.handlePurchaseItem)

	mux.HandleFunc("GET /api/labels", s.handleListLabels)
	mux.HandleFunc("POST /api/labels", s.handleCreateLabel)
	mux.HandleFunc("GET /api/labels/{id}", s.handleGetLabel)
	mux.HandleFunc("PUT /api/labels/{id}", s.handleUpdateLabel)
	mux.HandleFunc("DELETE /api/labels/{id}", s.handleDeleteLabel)

	mux.HandleFunc("GET /api/view", s.handleGetView)
	mux.HandleFunc("POST /api/view/filter", s.handleUpdateFilter)

	var h http.Handler = s.withSecurityHeaders(mux)
	h = log.RequestMiddleware(log.ComponentHTTP, requestHeader, sessionHeader)(h)
	h = log.Middleware(s.logger)(h)
	h = s.assignRequestID(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// assignRequestID keeps a sane client-supplied X-Request-ID and generates one
// otherwise, so every later layer sees the same value.
func (s *Server) assignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sanitizeInput(r.Header.Get(requestHeader))
		if id == "" || len(id) > 64 {
			id = generateRequestID()
		}
		r.Header.Set(requestHeader, id)
		w.Header().Set(requestHeader, id)
		next.ServeHTTP(w, r)
	})
}

// withSecurityHeaders adds security headers, rate limiting for mutating
// methods and request logging.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := log.FromContext(ctx)
		structured := log.NewStructuredLogger(logger)
		clientIP := extractClientIP(r)
		if reason := detectSuspiciousRequest(r, s.metrics); reason != "" {
			logger.WarnContext(ctx, "Suspicious request",
				"reason", reason,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}
		structured.LogHTTPStart(ctx, r, clientIP)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldComponent, log.ComponentRateLimit,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			writeJSON(rw, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
		} else {
			next.ServeHTTP(rw, r)
		}

		s.metrics.record(r.URL.Path, rw.statusCode)
		structured.LogHTTPEnd(ctx, r, rw.statusCode, rw.bytes, time.Since(start).Milliseconds(), clientIP)
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter records the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "HTTP shutdown failed", log.FieldError, err)
		}
	})
	return err
}
