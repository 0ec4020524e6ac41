package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pulsesync/internal/canvas"
	"pulsesync/internal/config"
	appLog "pulsesync/internal/log"
	"pulsesync/internal/model"
	"pulsesync/internal/publish"
)

// ScheduleFetcher is satisfied by *pipeline.Fetcher.
type ScheduleFetcher interface {
	FetchAndNormalize(ctx context.Context, rawURL string, loc *time.Location) (*model.Schedule, error)
}

// Publisher is satisfied by *publish.Publisher.
type Publisher interface {
	Publish(ctx context.Context, req *publish.Request) (*publish.Result, error)
}

// IdentityResolver is satisfied by *canvas.Client.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context) (canvas.Identity, error)
}

// Deps are the collaborators behind the API.
type Deps struct {
	Schedules ScheduleFetcher
	Publisher Publisher
	Identity  IdentityResolver
	// Metrics, if set, is served on /metrics.
	Metrics http.Handler
}

// Server provides the HTTP API for fetching TimeEdit schedules and
// publishing them to Canvas.
type Server struct {
	cfg  *config.Config
	deps Deps
	loc  *time.Location
	mux  *http.ServeMux
}

// NewServer constructs a new Server. cfg is read-only after this call.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		loc:  cfg.Location(),
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler: routes wrapped with optional basic
// auth and the request logger.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return requestLogger(recoverer(h))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedule-source/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/schedule-source/schedule.ics", s.handleScheduleICS)
	s.mux.HandleFunc("POST /api/publish-target/publish", s.handlePublish)
	s.mux.HandleFunc("GET /api/publish-target/identity", s.handleIdentity)
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics)
	}
	s.mux.HandleFunc("/", s.handleNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "No route for "+r.Method+" "+r.URL.Path, nil)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="pulsesync", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

const requestIDHeader = "X-Request-ID"

// requestLogger tags every request with an id and logs method, path, status
// and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		appLog.Info("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// recoverer turns a handler panic into a 500 envelope.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				appLog.Warn("handler panic", "path", r.URL.Path, "panic", v)
				writeInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}
