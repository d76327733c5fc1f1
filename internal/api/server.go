package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"covinance/internal/apperr"
	"covinance/internal/facade"
	"covinance/internal/logger"
	"covinance/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBody caps request bodies; commands are a handful of short fields.
const maxBody = 64 << 10

// Server exposes the command facade over HTTP.
type Server struct {
	facade  *facade.Facade
	timeout time.Duration
	version string
}

// NewServer creates a Server. timeout bounds each command; 0 leaves it to the
// client.
func NewServer(f *facade.Facade, timeout time.Duration, version string) *Server {
	return &Server{facade: f, timeout: timeout, version: version}
}

// Handler returns the HTTP handler with all API routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/actions", s.handleActions)
		r.Post("/ask", s.handleAsk)
		r.Post("/actions/{action}", s.handleAction)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/clear", s.handleCacheClear)
	})
	return r
}

// requestID tags every request with an X-Request-ID, reusing the caller's.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps a facade outcome to an HTTP status. Answers that explain
// themselves (nothing found, salvage only) are still 200.
func statusFor(resp facade.Response) int {
	switch resp.Reason {
	case apperr.KindInvalidRequest:
		return http.StatusBadRequest
	case apperr.KindRemoteUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "covinance"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.facade.State(r.Context())
	out := map[string]interface{}{
		"version":     s.version,
		"game":        st.Snapshot,
		"constraints": st.Constraints,
	}
	if st.Reason != nil {
		out["degraded"] = apperr.Reason(st.Reason)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, facade.Actions)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req facade.Request
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	s.run(w, r, req)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req facade.Request
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	req.Action = facade.Action(chi.URLParam(r, "action"))
	s.run(w, r, req)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, facade.Request{Action: facade.ActionCacheStats})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, facade.Request{Action: facade.ActionCacheClear})
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, req facade.Request) {
	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	resp := s.facade.Handle(ctx, req)
	if resp.Status != facade.StatusOK {
		logger.Debug("API", "command failed",
			zap.String("request_id", w.Header().Get("X-Request-ID")),
			zap.String("action", string(req.Action)),
			zap.String("reason", string(resp.Reason)))
	}
	writeJSON(w, statusFor(resp), resp)
}

// decode reads an optional JSON body; an empty body is an empty request.
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
