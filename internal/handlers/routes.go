package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"baserow-bridge/internal/common/logging"
	"baserow-bridge/internal/middleware"
)

// NewRouter registers every route of the status API.
func NewRouter(h *Handlers, logger logging.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(logger))

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	var trigger http.Handler = http.HandlerFunc(h.TriggerRun)
	if h.authorize != nil {
		trigger = h.authorize(trigger)
	}
	router.Handle("/runs", trigger).Methods(http.MethodPost)

	return router
}
