// Package server exposes the engine's state and controls over HTTP.
package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"arbwatch/internal/config"
)

// Server is the operator HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with every route registered. ws may be nil.
func NewServer(cfg config.ServerConfig, api *API, ws http.HandlerFunc, limiter RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      Routes(cfg, api, ws, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes builds the handler tree: routes, rate limit, security headers,
// logging, then CORS. A nil limiter keeps counts in memory.
func Routes(cfg config.ServerConfig, api *API, ws http.HandlerFunc, limiter RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", api.Health)
	mux.HandleFunc("GET /stats", api.Stats)

	// Cross-exchange
	mux.HandleFunc("GET /api/opportunities", api.Opportunities)
	mux.HandleFunc("GET /api/prices", api.Prices)

	// Triangular
	mux.HandleFunc("GET /api/triangles", api.ListTriangles)
	mux.HandleFunc("POST /api/triangles", api.AddTriangle)
	mux.HandleFunc("GET /api/triangles/opportunities", api.BestTriangleOpportunities)
	mux.HandleFunc("GET /api/triangles/recent", api.RecentTriangleOpportunities)
	mux.HandleFunc("POST /api/triangles/enable-all", api.EnableAllTriangles)
	mux.HandleFunc("POST /api/triangles/disable-all", api.DisableAllTriangles)
	mux.HandleFunc("GET /api/triangles/{id}", api.GetTriangle)
	mux.HandleFunc("PUT /api/triangles/{id}", api.UpdateTriangle)
	mux.HandleFunc("DELETE /api/triangles/{id}", api.RemoveTriangle)
	mux.HandleFunc("POST /api/triangles/{id}/toggle", api.ToggleTriangle)

	// Test orders
	mux.HandleFunc("GET /api/testorders/status", api.TestOrderStatus)
	mux.HandleFunc("POST /api/testorders/{action}", api.SetTestOrders)
	mux.HandleFunc("DELETE /api/testorders/logs", api.ClearTestOrders)

	if ws != nil {
		mux.HandleFunc("GET /ws", ws)
	}

	if limiter == nil {
		limiter = NewMemoryRateLimiter()
	}

	var h http.Handler = mux
	h = rateLimit(limiter, cfg.RateLimit, logger)(h)
	h = securityHeaders(h)
	h = logging(logger)(h)
	h = cors(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// cors sets CORS headers for the allowed origins. Requests from other
// origins are served without them, so browsers reject the response.
func cors(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// logging logs every request at debug level; the dashboard polls often.
func logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", rw.statusCode,
				"duration", time.Since(start),
			)
		})
	}
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
	}
	return h.Hijack()
}
