// Package api exposes the thin HTTP trigger surface. Every mutating
// endpoint is fire-and-forget: it enqueues or inserts and answers 202 with
// an acknowledgement; eventual state comes from the status reads.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

type Options struct {
	APIKey         string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the stores.
type Server struct {
	router chi.Router
	crawls pipeline.CrawlStore
	queue  pipeline.JobQueue
	vector pipeline.VectorStore
	logger *zap.Logger
}

func NewServer(
	crawls pipeline.CrawlStore,
	queue pipeline.JobQueue,
	vector pipeline.VectorStore,
	opts Options,
	logger *zap.Logger,
) *Server {
	s := &Server{
		crawls: crawls,
		queue:  queue,
		vector: vector,
		logger: logger.Named("api"),
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))
	if opts.APIKey != "" {
		r.Use(apiKeyMiddleware(opts.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.createCrawl)
			r.Route("/{crawl_id}", func(r chi.Router) {
				r.Get("/", s.getCrawl)
				r.Get("/status", s.getCrawlStatus)
				r.Delete("/urls", s.clearCrawlURLs)
			})
		})
		r.Route("/queue", func(r chi.Router) {
			r.Post("/", s.enqueueJob)
			r.Get("/", s.listQueue)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type createCrawlRequest struct {
	RootURL  string `json:"root_url"`
	MaxDepth *int   `json:"max_depth"`
	MaxURLs  *int   `json:"max_urls"`
}

func (s *Server) createCrawl(w http.ResponseWriter, r *http.Request) {
	var req createCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.RootURL == "" {
		writeError(w, http.StatusBadRequest, "root_url is required")
		return
	}

	job := &pipeline.CrawlJob{
		RootURL:  req.RootURL,
		MaxDepth: valueOrDefault(req.MaxDepth, 2),
		MaxURLs:  valueOrDefault(req.MaxURLs, 100),
	}
	if err := s.crawls.CreateJob(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// The crawl sweep picks the job up on its next tick.
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (s *Server) getCrawl(w http.ResponseWriter, r *http.Request) {
	job, err := s.crawls.GetJob(r.Context(), chi.URLParam(r, "crawl_id"))
	if errors.Is(err, pipeline.ErrNotFound) {
		writeError(w, http.StatusNotFound, "crawl not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) getCrawlStatus(w http.ResponseWriter, r *http.Request) {
	sum, err := s.crawls.Summary(r.Context(), chi.URLParam(r, "crawl_id"))
	if errors.Is(err, pipeline.ErrNotFound) {
		writeError(w, http.StatusNotFound, "crawl not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) clearCrawlURLs(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "crawl_id")
	vectorIDs, err := s.crawls.ClearURLs(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.vector.Delete(r.Context(), vectorIDs); err != nil {
		s.logger.Error("vector point deletion failed",
			zap.String("job", jobID),
			zap.Int("ids", len(vectorIDs)),
			zap.Error(err))
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"deleted_vectors": len(vectorIDs)})
}

type enqueueRequest struct {
	ScopeID string `json:"scope_id"`
	JobType string `json:"job_type"`
}

func (s *Server) enqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ScopeID == "" {
		writeError(w, http.StatusBadRequest, "scope_id is required")
		return
	}
	jobType, err := pipeline.ParseJobType(req.JobType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown job_type "+req.JobType)
		return
	}

	entry, err := s.queue.Enqueue(r.Context(), req.ScopeID, jobType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"entry_id": entry.ID})
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	scopeID := r.URL.Query().Get("scope_id")
	if scopeID == "" {
		writeError(w, http.StatusBadRequest, "scope_id is required")
		return
	}
	entries, err := s.queue.ListByScope(r.Context(), scopeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func valueOrDefault[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
