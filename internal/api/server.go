// Package api serves the WBS sessions over HTTP.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	wbserr "siteplan/internal/errors"
	"siteplan/pkg/wbs"
)

// maxBody caps request bodies; bulk payloads are the largest.
const maxBody = 1 << 20

// Server is the HTTP API server.
type Server struct {
	sessions *wbs.Registry
	bus      *wbs.Bus
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a new Server. bus may be nil, in which case the change stream
// is unavailable.
func New(sessions *wbs.Registry, bus *wbs.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sessions: sessions,
		bus:      bus,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tree views
	s.mux.HandleFunc("GET /api/projects", s.handleProjectList)
	s.mux.HandleFunc("GET /api/projects/{project}/wbs", s.handleTree)
	s.mux.HandleFunc("POST /api/projects/{project}/wbs/reload", s.handleReload)
	s.mux.HandleFunc("GET /api/projects/{project}/wbs/progress", s.handleProgress)
	s.mux.HandleFunc("GET /api/projects/{project}/wbs/milestones", s.handleMilestones)
	s.mux.HandleFunc("GET /api/projects/{project}/wbs/stream", s.handleStream)

	// Mutations
	s.mux.HandleFunc("POST /api/projects/{project}/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/bulk", s.handleTaskBulk)
	s.mux.HandleFunc("PATCH /api/projects/{project}/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("DELETE /api/projects/{project}/tasks/{id}", s.handleTaskDelete)
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{id}/milestone", s.handleTaskMilestone)
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{id}/status", s.handleTaskStatus)
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{id}/expand", s.handleTaskExpand)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// session resolves the loaded session named by the {project} path value.
// On failure the error response has already been written.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*wbs.Session, bool) {
	project := r.PathValue("project")
	sess, err := s.sessions.Session(r.Context(), project)
	if err != nil {
		s.writeFailure(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{
		"status":   "ok",
		"projects": len(s.sessions.Projects()),
	})
}

func (s *Server) handleProjectList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.sessions.Projects())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps err onto its HTTP status. Structured errors keep their
// code in the body.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := wbserr.HTTPStatus(err)
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}
	body := map[string]any{"error": err.Error()}
	if we := wbserr.AsWBSError(err); we != nil {
		body["code"] = we.Code
	}
	writeJSON(w, status, body)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
