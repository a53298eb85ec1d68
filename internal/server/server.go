package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lazypower/companion/internal/llm"
	"github.com/lazypower/companion/internal/metrics"
	"github.com/lazypower/companion/internal/persona"
	"github.com/lazypower/companion/internal/store"
)

// Options tune the transport.
type Options struct {
	Version string
	// ChatPerMinute limits chat requests per user; 0 disables limiting.
	ChatPerMinute float64
	ChatBurst     int
}

// Server is the companion HTTP API server.
type Server struct {
	db        *store.DB
	engine    *persona.Engine
	responder *llm.Responder
	limiter   *userLimiter
	router    chi.Router
	version   string
	started   time.Time
}

// New creates a new Server over the given database, engine and responder.
func New(db *store.DB, eng *persona.Engine, responder *llm.Responder, opts Options) *Server {
	s := &Server{
		db:        db,
		engine:    eng,
		responder: responder,
		limiter:   newUserLimiter(opts.ChatPerMinute, opts.ChatBurst),
		version:   opts.Version,
		started:   time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(instrument)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/chat", s.handleChat)
		r.Get("/poll", s.handlePoll)

		r.Get("/memories/{userID}", s.handleListMemories)
		r.Post("/memories/mark", s.handleMarkMemory)
		r.Post("/memories/delete", s.handleDeleteMemory)
		r.Post("/remember", s.handleRemember)

		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)

		r.Get("/status", s.handleStatus)
		r.Get("/avatar", s.handleAvatar)
	})

	s.router = r
}

// instrument counts requests by route pattern and status.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestCount.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"users":   s.engine.Users().Len(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
