package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/consulting-site/internal/contact"
	"github.com/JakeFAU/consulting-site/internal/metrics"
	"github.com/JakeFAU/consulting-site/internal/publications"
)

// maxContactBody caps the contact payload; larger bodies fail as invalid JSON.
const maxContactBody = 64 << 10

// ContactService runs one submission to a terminal outcome.
type ContactService interface {
	Submit(ctx context.Context, body io.Reader, clientIP string) contact.Outcome
}

// Catalog serves publications.
type Catalog interface {
	Feed(ctx context.Context) ([]publications.FeedItem, error)
	Articles(ctx context.Context) ([]publications.ArticleMeta, error)
	Article(ctx context.Context, slug string) (publications.Article, error)
}

// Pinger reports whether a downstream dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Clock abstracts time for the sitemap fallback date.
type Clock interface {
	Now() time.Time
}

// Deps wires the server. Contact and Publications are required.
type Deps struct {
	Contact        ContactService
	Publications   Catalog
	SiteURL        string
	NoIndex        []string
	Security       func(http.Handler) http.Handler
	Ready          []Pinger
	RequestTimeout time.Duration
	Clock          Clock
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the contact pipeline and the publications catalog.
type Server struct {
	router  chi.Router
	contact ContactService
	catalog Catalog
	siteURL string
	noIndex []string
	ready   []Pinger
	clock   Clock
	logger  *zap.Logger
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) (*Server, error) {
	if deps.Contact == nil {
		return nil, errors.New("api: contact service is required")
	}
	if deps.Publications == nil {
		return nil, errors.New("api: publications catalog is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = wallClock{}
	}
	s := &Server{
		contact: deps.Contact,
		catalog: deps.Publications,
		siteURL: deps.SiteURL,
		noIndex: deps.NoIndex,
		ready:   deps.Ready,
		clock:   clock,
		logger:  logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	if deps.Security != nil {
		r.Use(deps.Security)
	}
	if deps.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(deps.RequestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/sitemap.xml", s.sitemap)

	r.Route("/api", func(r chi.Router) {
		r.Post("/contact", s.submitContact)
		r.Route("/publications", func(r chi.Router) {
			r.Get("/", s.listPublications)
			r.Get("/{slug}", s.getPublication)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range s.ready {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the id assigned by the request id middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("error", rec),
						zap.StackSkip("stack", 2),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
