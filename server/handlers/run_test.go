package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compatpipe/compatpipe/pipeline"
)

type mockTrigger struct {
	err      error
	id       string
	triggers []pipeline.Trigger
}

func (m *mockTrigger) Trigger(trigger pipeline.Trigger) (string, error) {
	m.triggers = append(m.triggers, trigger)
	if m.err != nil {
		return "", m.err
	}
	return m.id, nil
}

func TestRunHandler_EmptyBodyDefaultsToManual(t *testing.T) {
	runner := &mockTrigger{id: "run-1"}
	handler := NewRunHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, runner.triggers, 1)
	assert.Equal(t, pipeline.TriggerManual, runner.triggers[0])

	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.ID)
}

func TestRunHandler_ExplicitTrigger(t *testing.T) {
	runner := &mockTrigger{id: "run-2"}
	handler := NewRunHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"trigger":"release"}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, runner.triggers, 1)
	assert.Equal(t, pipeline.TriggerRelease, runner.triggers[0])
}

func TestRunHandler_UnknownTrigger(t *testing.T) {
	runner := &mockTrigger{id: "run-3"}
	handler := NewRunHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"trigger":"bogus"}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, runner.triggers)
}

func TestRunHandler_InvalidJSON(t *testing.T) {
	runner := &mockTrigger{}
	handler := NewRunHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunHandler_TriggerError(t *testing.T) {
	runner := &mockTrigger{err: errors.New("bad harness command")}
	handler := NewRunHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "bad harness command")
}

func TestHookHandler(t *testing.T) {
	tests := []struct {
		name    string
		trigger pipeline.Trigger
	}{
		{name: "release hook", trigger: pipeline.TriggerRelease},
		{name: "suite hook", trigger: pipeline.TriggerChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockTrigger{id: "run-1"}
			handler := NewHookHandler(testLogger(), runner, tt.trigger)

			req := httptest.NewRequest(http.MethodPost, "/hooks/x", strings.NewReader(`{"implementation":"example/go-jsonschema"}`))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusAccepted, w.Code)
			require.Len(t, runner.triggers, 1)
			assert.Equal(t, tt.trigger, runner.triggers[0])
		})
	}
}
