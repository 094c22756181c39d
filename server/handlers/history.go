package handlers

import (
	"errors"
	"net/http"

	"github.com/compatpipe/compatpipe/server/runner"
)

// HistoryHandler handles requests for the completed run history.
type HistoryHandler struct {
	provider HistoryProvider
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(provider HistoryProvider) *HistoryHandler {
	return &HistoryHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	records := h.provider.History()

	// The per-cell logs can be large; they are served separately by
	// HistoryLogsHandler.
	statuses := make([]any, 0, len(records))
	for _, record := range records {
		statuses = append(statuses, record.RunStatus)
	}
	writeJSON(w, http.StatusOK, statuses)
}

// HistoryLogsHandler handles requests for the per-cell logs of one run.
type HistoryLogsHandler struct {
	provider HistoryProvider
}

// NewHistoryLogsHandler creates a new HistoryLogsHandler.
func NewHistoryLogsHandler(provider HistoryProvider) *HistoryLogsHandler {
	return &HistoryLogsHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryLogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing run id"})
		return
	}

	logs, err := h.provider.Logs(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runner.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, logs)
}
