// Package handlers serves the status API of the bridge: health, run history
// and manual run triggering.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"baserow-bridge/internal/common/logging"
	"baserow-bridge/internal/history"
	"baserow-bridge/internal/pipeline"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// Engine is the part of pipeline.Engine the handlers use.
type Engine interface {
	Start(ctx context.Context, trigger string) (<-chan *history.Run, error)
	Running() bool
	Last() *history.Run
}

// Handlers holds the dependencies of the HTTP handlers.
type Handlers struct {
	engine Engine
	store  history.Store
	// baseCtx outlives requests so that runs started over HTTP are not
	// cancelled when the response is written.
	baseCtx context.Context
	logger  logging.Logger
	// authorize wraps run triggering when API tokens are configured.
	authorize func(http.Handler) http.Handler
}

// New creates Handlers. store may be nil, in which case /runs falls back to
// the engine's last run.
func New(ctx context.Context, engine Engine, store history.Store, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		engine:  engine,
		store:   store,
		baseCtx: ctx,
		logger:  logger,
	}
}

// WithAuth requires middleware to pass before a run can be triggered.
func (h *Handlers) WithAuth(middleware func(http.Handler) http.Handler) *Handlers {
	h.authorize = middleware
	return h
}

// HealthCheck reports liveness and whether a run is active.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"running":   h.engine.Running(),
	}
	writeJSON(w, http.StatusOK, health)
}

// ListRuns returns recent runs, newest first. ?limit= caps the count.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs := []*history.Run{}
	if h.store != nil {
		stored, err := h.store.Recent(r.Context(), limit)
		if err != nil {
			h.logger.Error("Failed to list runs", err)
			writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		runs = append(runs, stored...)
	} else if last := h.engine.Last(); last != nil {
		runs = append(runs, last)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":    runs,
		"running": h.engine.Running(),
	})
}

// TriggerRun starts a run in the background. It answers 202 when the run
// started and 409 when one is already in progress.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	done, err := h.engine.Start(h.baseCtx, history.TriggerAPI)
	if stderrors.Is(err, pipeline.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Failed to start run", err)
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	go func() {
		if run := <-done; run != nil && !run.Succeeded() {
			h.logger.Warn("Run triggered over HTTP failed",
				logging.String("run_id", run.ID),
				logging.String("error", run.Error),
			)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
