package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// recordingStage appends its name to a shared order slice on execution.
type recordingStage struct {
	name    string
	mu      *sync.Mutex
	order   *[]string
	initErr error
	execErr error
	delay   time.Duration
}

func (s *recordingStage) Init() error { return s.initErr }

func (s *recordingStage) Execute(ctx context.Context) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	*s.order = append(*s.order, s.name)
	s.mu.Unlock()
	return s.execErr
}

func newRecorder() (*sync.Mutex, *[]string) {
	var mu sync.Mutex
	order := make([]string, 0)
	return &mu, &order
}

func TestGraph_ExecutesInDependencyOrder(t *testing.T) {
	mu, order := newRecorder()
	g := NewGraph(testLogger())

	require.NoError(t, g.AddStage("a", &recordingStage{name: "a", mu: mu, order: order}))
	require.NoError(t, g.AddStage("b", &recordingStage{name: "b", mu: mu, order: order}, "a"))
	require.NoError(t, g.AddStage("c", &recordingStage{name: "c", mu: mu, order: order}, "b"))

	require.NoError(t, g.Execute(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, *order)
	for _, name := range []string{"a", "b", "c"} {
		assert.True(t, g.Result(name).IsSuccess(), "stage %s", name)
	}
}

func TestGraph_IndependentStagesAllRun(t *testing.T) {
	mu, order := newRecorder()
	g := NewGraph(testLogger())

	require.NoError(t, g.AddStage("a", &recordingStage{name: "a", mu: mu, order: order}))
	require.NoError(t, g.AddStage("b", &recordingStage{name: "b", mu: mu, order: order}))
	require.NoError(t, g.AddStage("c", &recordingStage{name: "c", mu: mu, order: order}))

	require.NoError(t, g.Execute(context.Background()))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, *order)
}

func TestGraph_DependencyFailureSkipsDependents(t *testing.T) {
	mu, order := newRecorder()
	g := NewGraph(testLogger())
	failure := errors.New("boom")

	require.NoError(t, g.AddStage("a", &recordingStage{name: "a", mu: mu, order: order, execErr: failure}))
	require.NoError(t, g.AddStage("b", &recordingStage{name: "b", mu: mu, order: order}, "a"))
	require.NoError(t, g.AddStage("c", &recordingStage{name: "c", mu: mu, order: order}, "b"))

	err := g.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)

	assert.Equal(t, Completed, g.Result("a").State)
	assert.False(t, g.Result("a").IsSuccess())
	assert.Equal(t, Skipped, g.Result("b").State)
	assert.Equal(t, Skipped, g.Result("c").State)
	assert.Equal(t, []string{"a"}, *order)
}

func TestGraph_SkipCascadesThroughDiamond(t *testing.T) {
	mu, order := newRecorder()
	g := NewGraph(testLogger())
	failure := errors.New("boom")

	require.NoError(t, g.AddStage("root", &recordingStage{name: "root", mu: mu, order: order}))
	require.NoError(t, g.AddStage("left", &recordingStage{name: "left", mu: mu, order: order, execErr: failure}, "root"))
	require.NoError(t, g.AddStage("right", &recordingStage{name: "right", mu: mu, order: order}, "root"))
	require.NoError(t, g.AddStage("join", &recordingStage{name: "join", mu: mu, order: order}, "left", "right"))

	require.Error(t, g.Execute(context.Background()))

	assert.True(t, g.Result("root").IsSuccess())
	assert.True(t, g.Result("right").IsSuccess())
	assert.Equal(t, Skipped, g.Result("join").State)
}

func TestGraph_DuplicateStage(t *testing.T) {
	mu, order := newRecorder()
	g := NewGraph(testLogger())

	require.NoError(t, g.AddStage("a", &recordingStage{name: "a", mu: mu, order: order}))
	assert.Error(t, g.AddStage("a", &recordingStage{name: "a", mu: mu, order: order}))
}

func TestGraph_UnknownDependency(t *testing.T) {
	mu, order := newRecorder()
	g := NewGraph(testLogger())

	require.NoError(t, g.AddStage("a", &recordingStage{name: "a", mu: mu, order: order}, "missing"))

	err := g.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, NotStarted, g.Result("a").State)
	assert.Empty(t, *order)
}

func TestGraph_CircularDependency(t *testing.T) {
	mu, order := newRecorder()
	g := NewGraph(testLogger())

	require.NoError(t, g.AddStage("a", &recordingStage{name: "a", mu: mu, order: order}, "b"))
	require.NoError(t, g.AddStage("b", &recordingStage{name: "b", mu: mu, order: order}, "a"))

	err := g.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")
	assert.Empty(t, *order)
}

func TestGraph_InitFailureAbortsExecution(t *testing.T) {
	mu, order := newRecorder()
	g := NewGraph(testLogger())

	require.NoError(t, g.AddStage("a", &recordingStage{name: "a", mu: mu, order: order, initErr: errors.New("bad wiring")}))

	err := g.Execute(context.Background())
	require.Error(t, err)
	assert.Empty(t, *order)
}

func TestGraph_CancellationSkipsWaitingStages(t *testing.T) {
	mu, order := newRecorder()
	g := NewGraph(testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, g.AddStage("slow", &recordingStage{name: "slow", mu: mu, order: order, delay: 5 * time.Second}))
	require.NoError(t, g.AddStage("after", &recordingStage{name: "after", mu: mu, order: order}, "slow"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := g.Execute(ctx)
	require.Error(t, err)
	assert.Equal(t, Skipped, g.Result("after").State)
}

func TestGraph_EmptyGraph(t *testing.T) {
	g := NewGraph(testLogger())
	assert.NoError(t, g.Execute(context.Background()))
}

func TestStageState_String(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "unknown", StageState(99).String())
}
