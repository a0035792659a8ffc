package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"

	"lens-tracker/internal/auth"
	"lens-tracker/internal/config"
	"lens-tracker/internal/logger"
	"lens-tracker/internal/sheets"
	"lens-tracker/internal/statussync"
	"lens-tracker/internal/tracking"
)

const maxBodyBytes = 1 << 20

// ConfigSaver persists settings changed through the API.
type ConfigSaver interface {
	SaveConfig(cfg *config.Config) error
}

// Server is the HTTP API over the tracking service and the synchronizer.
type Server struct {
	cfg      *config.Config
	tracking *tracking.Service
	sync     *statussync.Synchronizer
	identity auth.IdentityProvider
	settings ConfigSaver
}

// NewServer wires the API. identity resolves bearer tokens; settings stores
// config updates.
func NewServer(cfg *config.Config, svc *tracking.Service, syncer *statussync.Synchronizer, identity auth.IdentityProvider, settings ConfigSaver) *Server {
	return &Server{
		cfg:      cfg,
		tracking: svc,
		sync:     syncer,
		identity: identity,
		settings: settings,
	}
}

// Handler returns the HTTP handler with all API routes, CORS and Server-Timing middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /api/status", s.authenticated(s.handleStatus))
	mux.Handle("GET /api/jobs/{job}", s.authenticated(s.handleJob))
	mux.Handle("POST /api/events", s.authenticated(s.handleRecordEvent))
	// Admin dashboards
	mux.Handle("GET /api/production", s.adminOnly(s.handleProduction))
	mux.Handle("GET /api/delayed", s.adminOnly(s.handleDelayed))
	mux.Handle("GET /api/queues", s.adminOnly(s.handleQueues))
	mux.Handle("GET /api/config", s.adminOnly(s.handleGetConfig))
	mux.Handle("POST /api/config", s.adminOnly(s.handleSetConfig))
	// Sync
	mux.Handle("POST /api/sync", s.adminOnly(s.handleSync))
	mux.Handle("GET /api/sync/status", s.authenticated(s.handleSyncStatus))
	return servertiming.Middleware(corsMiddleware(mux), nil)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSONStatus(w, code, map[string]string{
		"error":     msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps domain errors to status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, tracking.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tracking.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sheets.ErrUnavailable):
		logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		writeError(w, http.StatusServiceUnavailable, "status store unavailable")
	default:
		logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type statusResponse struct {
	tracking.Status
	SyncState statussync.State `json:"syncState"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracking.Status(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, statusResponse{Status: st, SyncState: s.sync.State()})
}

func (s *Server) handleProduction(w http.ResponseWriter, r *http.Request) {
	m, err := s.tracking.ProductionMatrix(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, m)
}

func (s *Server) handleDelayed(w http.ResponseWriter, r *http.Request) {
	d, err := s.tracking.DelayedJobs(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	q, err := s.tracking.DueQueues(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, q)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	h, err := s.tracking.JobHistory(r.Context(), r.PathValue("job"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, h)
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var in tracking.EventInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ev, err := s.tracking.RecordEvent(r.Context(), principalFrom(r.Context()), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, ev)
}

// handleSync is the manual, ungated trigger. A failed run answers 503 with
// the same result shape.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	res := s.sync.Sync(r.Context(), p.Email)
	if !res.Success {
		writeJSONStatus(w, http.StatusServiceUnavailable, res)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, map[string]interface{}{
		"state":        s.sync.State(),
		"windowOpen":   s.sync.ShouldRun(now.In(s.tracking.Location())),
		"intervalMins": s.cfg.SyncIntervalMinutes,
		"startHour":    s.cfg.SyncStartHour,
		"endHour":      s.cfg.SyncEndHour,
	})
}

func redact(cfg *config.Config) *config.Config {
	out := cfg.Clone()
	if out.PostgresDSN != "" {
		out.PostgresDSN = "***"
	}
	return out
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, redact(s.cfg))
}

// handleSetConfig persists a partial update. The running service keeps its
// settings; the saved ones load on the next start.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	next := s.cfg.Clone()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	// Bootstrap settings come from flags and the environment.
	next.Port, next.DBPath, next.StoreDriver, next.PostgresDSN = s.cfg.Port, s.cfg.DBPath, s.cfg.StoreDriver, s.cfg.PostgresDSN
	if err := next.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.settings.SaveConfig(next); err != nil {
		logger.Error("API", fmt.Sprintf("Save config: %v", err))
		writeError(w, http.StatusInternalServerError, "config not saved")
		return
	}
	logger.Info("API", fmt.Sprintf("%s saved config", principalFrom(r.Context()).Email))
	writeJSON(w, map[string]interface{}{
		"config":          redact(next),
		"restartRequired": true,
	})
}
