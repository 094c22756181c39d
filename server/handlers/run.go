package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/compatpipe/compatpipe/pipeline"
)

// RunRequest defines the request body for POST /run. The body is
// optional; an empty body triggers a manual run.
type RunRequest struct {
	Trigger string `json:"trigger,omitempty"`
}

// RunResponse is returned when a run has been accepted.
type RunResponse struct {
	ID string `json:"id"`
}

// RunHandler handles requests to trigger a pipeline run.
type RunHandler struct {
	runner PipelineTrigger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(r PipelineTrigger) *RunHandler {
	return &RunHandler{
		runner: r,
	}
}

// ServeHTTP implements http.Handler.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid JSON: %v", err),
		})
		return
	}

	trigger := pipeline.TriggerManual
	if req.Trigger != "" {
		switch t := pipeline.Trigger(req.Trigger); t {
		case pipeline.TriggerRelease, pipeline.TriggerChain, pipeline.TriggerManual, pipeline.TriggerSchedule:
			trigger = t
		default:
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("unknown trigger %q", req.Trigger),
			})
			return
		}
	}

	id, err := h.runner.Trigger(trigger)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusAccepted, RunResponse{ID: id})
}
