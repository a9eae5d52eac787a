package optd

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/QuantTune-Labs/optimizer-core/internal/space"
	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/config"
	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
)

// HTTPServer exposes the daemon's control plane: study lifecycle, trial
// history, importance reports, and the websocket progress stream
type HTTPServer struct {
	mux      *http.ServeMux
	manager  *Manager
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHTTPServer creates the server and wires its routes
func NewHTTPServer(manager *Manager, hub *Hub) *HTTPServer {
	s := &HTTPServer{
		mux:     http.NewServeMux(),
		manager: manager,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/studies", s.handleStudies)
	s.mux.HandleFunc("/v1/studies/", s.handleStudyByName)

	return s
}

// Handler returns the root handler for mounting
func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStudies handles /v1/studies
func (s *HTTPServer) handleStudies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateStudy(w, r)
	case http.MethodGet:
		s.handleListStudies(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleStudyByName handles /v1/studies/{name} and related endpoints
func (s *HTTPServer) handleStudyByName(w http.ResponseWriter, r *http.Request) {
	// Parse path: /v1/studies/{name}, a :run or :stop action, or a
	// /trials, /best, /importance, /progress suffix
	path := strings.TrimPrefix(r.URL.Path, "/v1/studies/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "study name is required")
		return
	}

	for action, handler := range map[string]func(http.ResponseWriter, *http.Request, string){
		":run":  s.handleRunStudy,
		":stop": s.handleStopStudy,
	} {
		if strings.HasSuffix(path, action) {
			name := strings.TrimSuffix(path, action)
			if r.Method == http.MethodPost {
				handler(w, r, name)
			} else {
				s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			}
			return
		}
	}

	for suffix, handler := range map[string]func(http.ResponseWriter, *http.Request, string){
		"/trials":     s.handleStudyTrials,
		"/best":       s.handleStudyBest,
		"/importance": s.handleStudyImportance,
		"/progress":   s.handleStudyProgress,
	} {
		if strings.HasSuffix(path, suffix) {
			name := strings.TrimSuffix(path, suffix)
			if r.Method == http.MethodGet {
				handler(w, r, name)
			} else {
				s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			}
			return
		}
	}

	if r.Method == http.MethodGet {
		s.handleGetStudy(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateStudy handles POST /v1/studies. The body is a study spec in
// YAML; JSON bodies parse as well since YAML subsumes them.
func (s *HTTPServer) handleCreateStudy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	spec, err := config.ParseStudySpecYAML(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.manager.Create(spec)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionActive):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, space.ErrInvalidParameterSpec):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("study created (HTTP)", "study", session.Name)
	snapshot, _ := s.manager.Snapshot(session.Name)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"study": convertSessionToJSON(&snapshot),
	})
}

// handleListStudies handles GET /v1/studies
func (s *HTTPServer) handleListStudies(w http.ResponseWriter, _ *http.Request) {
	sessions := s.manager.List()
	out := make([]map[string]any, 0, len(sessions))
	for _, session := range sessions {
		snapshot, ok := s.manager.Snapshot(session.Name)
		if !ok {
			continue
		}
		out = append(out, convertSessionToJSON(&snapshot))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"studies": out,
		"count":   len(out),
	})
}

// handleGetStudy handles GET /v1/studies/{name}
func (s *HTTPServer) handleGetStudy(w http.ResponseWriter, _ *http.Request, name string) {
	snapshot, ok := s.manager.Snapshot(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "study not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"study": convertSessionToJSON(&snapshot),
	})
}

// handleRunStudy handles POST /v1/studies/{name}:run
func (s *HTTPServer) handleRunStudy(w http.ResponseWriter, _ *http.Request, name string) {
	if _, err := s.manager.Run(name); err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrSessionActive):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("study rerun requested (HTTP)", "study", name)
	snapshot, _ := s.manager.Snapshot(name)
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"study": convertSessionToJSON(&snapshot),
	})
}

// handleStopStudy handles POST /v1/studies/{name}:stop
func (s *HTTPServer) handleStopStudy(w http.ResponseWriter, _ *http.Request, name string) {
	if _, err := s.manager.Stop(name); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
		} else {
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("study stop requested (HTTP)", "study", name)
	snapshot, _ := s.manager.Snapshot(name)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"study": convertSessionToJSON(&snapshot),
	})
}

// handleStudyTrials handles GET /v1/studies/{name}/trials
func (s *HTTPServer) handleStudyTrials(w http.ResponseWriter, _ *http.Request, name string) {
	trials, err := s.manager.Trials(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(trials))
	for _, t := range trials {
		out = append(out, convertTrialToJSON(t))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"study":  name,
		"trials": out,
		"count":  len(out),
	})
}

// handleStudyBest handles GET /v1/studies/{name}/best
func (s *HTTPServer) handleStudyBest(w http.ResponseWriter, _ *http.Request, name string) {
	best, err := s.manager.Best(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if best == nil {
		s.writeError(w, http.StatusPreconditionFailed, "no completed trials yet")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"study": name,
		"best":  convertTrialToJSON(best),
	})
}

// handleStudyImportance handles GET /v1/studies/{name}/importance
func (s *HTTPServer) handleStudyImportance(w http.ResponseWriter, _ *http.Request, name string) {
	report, err := s.manager.Importance(name)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
		} else {
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"study":      name,
		"importance": report.Ranked(),
	})
}

// handleStudyProgress handles GET /v1/studies/{name}/progress (websocket)
func (s *HTTPServer) handleStudyProgress(w http.ResponseWriter, r *http.Request, name string) {
	if _, ok := s.manager.Get(name); !ok {
		s.writeError(w, http.StatusNotFound, "study not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "study", name, "error", err)
		return
	}

	s.hub.Subscribe(name, conn)
	defer func() {
		s.hub.Unsubscribe(name, conn)
		conn.Close()
	}()

	// Drain the connection; the read fails when the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Helper functions

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func convertSessionToJSON(session *Session) map[string]any {
	out := map[string]any{
		"name":               session.Name,
		"run_id":             session.RunID,
		"status":             string(session.Status),
		"direction":          session.Spec.Direction,
		"sampler":            session.Spec.Sampler.Type,
		"pruner":             session.Spec.Pruner.Type,
		"n_trials":           session.Spec.NTrials,
		"created_at_unix_ms": session.CreatedAtUnixMs,
		"started_at_unix_ms": session.StartedAtUnixMs,
		"ended_at_unix_ms":   session.EndedAtUnixMs,
	}
	if session.Error != "" {
		out["error"] = session.Error
	}
	if session.Result != nil {
		out["result"] = map[string]any{
			"trial_count":     session.Result.TrialCount,
			"best_value":      session.Result.BestValue,
			"best_assignment": session.Result.BestAssignment,
			"interrupted":     session.Result.Interrupted,
		}
	}
	return out
}

func convertTrialToJSON(t *study.Trial) map[string]any {
	out := map[string]any{
		"number":      t.Number,
		"state":       string(t.State),
		"assignment":  t.Assignment,
		"duration_ms": t.Duration.Milliseconds(),
	}
	if t.Value != nil {
		out["value"] = *t.Value
	}
	if t.Error != "" {
		out["error"] = t.Error
	}
	return out
}
