package handlers

import (
	"log/slog"
	"net/http"

	"github.com/compatpipe/compatpipe/pipeline"
)

// HookHandler handles webhook notifications that provoke a pipeline
// run: a subject implementation release, or an upstream suite
// publication. The trigger is fixed per registered route; the request
// body is accepted as opaque provenance and not interpreted.
type HookHandler struct {
	logger  *slog.Logger
	runner  PipelineTrigger
	trigger pipeline.Trigger
}

// NewHookHandler creates a HookHandler that starts runs with the given trigger.
func NewHookHandler(logger *slog.Logger, r PipelineTrigger, trigger pipeline.Trigger) *HookHandler {
	return &HookHandler{
		logger:  logger,
		runner:  r,
		trigger: trigger,
	}
}

// ServeHTTP implements http.Handler.
func (h *HookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("received hook notification", "trigger", h.trigger, "remote", r.RemoteAddr)

	id, err := h.runner.Trigger(h.trigger)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusAccepted, RunResponse{ID: id})
}
