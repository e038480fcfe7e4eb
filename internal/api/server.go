// Package api exposes the admin HTTP surface from §10.3: liveness, metrics,
// and a synchronous job-trigger endpoint, grounded on the teacher's
// internal/api.Server (chi router plus a small middleware stack).
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/JakeFAU/media-inliner/internal/inline"
	"github.com/JakeFAU/media-inliner/internal/metrics"
)

// Runner is satisfied by *app.App: the one job-entry surface this server
// drives (§6).
type Runner interface {
	StartMediaInliner(ctx context.Context, domains []string) (inline.JobResult, error)
}

// Server wires HTTP handlers to a Runner.
type Server struct {
	router  chi.Router
	runner  Runner
	log     *zap.Logger
	timeout time.Duration
}

// NewServer constructs a Server with middleware and routes registered.
func NewServer(runner Runner, log *zap.Logger, timeout time.Duration) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	s := &Server{runner: runner, log: log, timeout: timeout}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/v1/media-inliner", func(r chi.Router) {
		r.Post("/runs", s.triggerRun)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	Domains []string `json:"domains"`
}

type runResponse struct {
	JobID     string `json:"job_id"`
	Fetched   int    `json:"fetched"`
	Cached    int    `json:"cached"`
	Failed    int    `json:"failed"`
	Rewritten int    `json:"rewritten"`
}

// triggerRun drives StartMediaInliner inline on the request goroutine,
// bounded by a server-side timeout (§10.3: the job is synchronous, so the
// handler itself enforces the deadline rather than offloading to a queue).
func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result, err := s.runner.StartMediaInliner(ctx, req.Domains)
	if err != nil {
		s.log.Error("media inliner run failed", zap.String("job_id", result.JobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, runResponse{
		JobID:     result.JobID,
		Fetched:   result.Counts.Fetched,
		Cached:    result.Counts.Cached,
		Failed:    result.Counts.Failed,
		Rewritten: result.Counts.Rewritten,
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request completed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.NewNop().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
