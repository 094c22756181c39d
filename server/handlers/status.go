package handlers

import (
	"net/http"
	"time"

	"github.com/compatpipe/compatpipe/buildinfo"
	"github.com/compatpipe/compatpipe/pipeline"
	"github.com/compatpipe/compatpipe/server/runner"
)

// NextRunResponse is the JSON response for the next scheduled run.
type NextRunResponse struct {
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// APIStatusResponse is the consolidated response for /api/status.
type APIStatusResponse struct {
	Active  []runner.ActiveRun   `json:"active"`
	LastRun *pipeline.RunStatus  `json:"last_run,omitempty"`
	NextRun NextRunResponse      `json:"next_run"`
	Build   buildinfo.Properties `json:"build"`
}

// APIStatusHandler handles requests for the consolidated status endpoint.
type APIStatusHandler struct {
	provider StatusProvider
}

// NewAPIStatusHandler creates a new APIStatusHandler.
func NewAPIStatusHandler(provider StatusProvider) *APIStatusHandler {
	return &APIStatusHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *APIStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	nextRun := h.provider.NextRun()

	resp := APIStatusResponse{
		Active:  h.provider.Active(),
		LastRun: h.provider.LastRun(),
		NextRun: NextRunResponse{
			Scheduled: nextRun != nil,
			NextRun:   nextRun,
		},
		Build: buildinfo.Get(),
	}

	writeJSON(w, http.StatusOK, resp)
}
