package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compatpipe/compatpipe/report"
)

const (
	testKey2020 = "https://json-schema.org/draft/2020-12/schema"
	testKey2019 = "https://json-schema.org/draft/2019-09/schema"
	testKey7    = "http://json-schema.org/draft-07/schema#"
)

// stubHarness returns canned bytes or errors per suite URL.
type stubHarness struct {
	mu      sync.Mutex
	outputs map[string][]byte
	errs    map[string]error
	delay   time.Duration
	calls   atomic.Int32
}

func (h *stubHarness) Run(ctx context.Context, subjects []string, suiteURL string) ([]byte, error) {
	h.calls.Add(1)
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err, ok := h.errs[suiteURL]; ok {
		return nil, err
	}
	return h.outputs[suiteURL], nil
}

// stubSummarizer treats any non-empty payload as summarizable.
type stubSummarizer struct{}

func (stubSummarizer) Summarize(raw []byte) (report.BadgeSet, string, error) {
	if len(raw) == 0 {
		return nil, "", errors.New("empty document")
	}
	return report.BadgeSet{}, "summary of " + string(raw), nil
}

func (stubSummarizer) Render(raw []byte, format string) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("empty document")
	}
	return string(raw), nil
}

func newMatrixRunner(h *stubHarness) *matrixRunner {
	return &matrixRunner{
		logger:      testLogger(),
		runner:      h,
		summarizer:  stubSummarizer{},
		subjects:    []string{"example/go-jsonschema"},
		timeout:     time.Second,
		maxParallel: 4,
	}
}

func TestMatrixRunner_AllCellsSucceed(t *testing.T) {
	h := &stubHarness{outputs: map[string][]byte{
		"suite-2020": []byte("doc-2020"),
		"suite-2019": []byte("doc-2019"),
	}}
	m := newMatrixRunner(h)

	results := m.run(context.Background(), []MatrixCell{
		{Key: testKey2020, SuiteURL: "suite-2020"},
		{Key: testKey2019, SuiteURL: "suite-2019"},
	})

	require.Len(t, results, 2)
	require.NoError(t, results[testKey2020].err)
	assert.Equal(t, []byte("doc-2020"), results[testKey2020].raw)
	assert.Equal(t, "summary of doc-2020", results[testKey2020].summary)
	require.NoError(t, results[testKey2019].err)
	assert.Equal(t, int32(2), h.calls.Load())
}

func TestMatrixRunner_CellsFailIndependently(t *testing.T) {
	h := &stubHarness{
		outputs: map[string][]byte{"suite-2020": []byte("doc-2020")},
		errs:    map[string]error{"suite-2019": errors.New("tool crashed")},
	}
	m := newMatrixRunner(h)

	results := m.run(context.Background(), []MatrixCell{
		{Key: testKey2020, SuiteURL: "suite-2020"},
		{Key: testKey2019, SuiteURL: "suite-2019"},
	})

	require.Len(t, results, 2)
	assert.NoError(t, results[testKey2020].err)

	failed := results[testKey2019]
	require.Error(t, failed.err)
	assert.Equal(t, FailureExecution, failed.kind)
	assert.Nil(t, failed.raw)
}

func TestMatrixRunner_SummaryFailureIsDistinct(t *testing.T) {
	// The harness succeeds but emits an empty document; the cell fails
	// at summarization while keeping the raw bytes.
	h := &stubHarness{outputs: map[string][]byte{"suite-2020": nil}}
	m := newMatrixRunner(h)

	results := m.run(context.Background(), []MatrixCell{
		{Key: testKey2020, SuiteURL: "suite-2020"},
	})

	result := results[testKey2020]
	require.Error(t, result.err)
	assert.Equal(t, FailureSummary, result.kind)
}

func TestMatrixRunner_CellTimeout(t *testing.T) {
	h := &stubHarness{
		outputs: map[string][]byte{"suite-2020": []byte("doc")},
		delay:   200 * time.Millisecond,
	}
	m := newMatrixRunner(h)
	m.timeout = 20 * time.Millisecond

	results := m.run(context.Background(), []MatrixCell{
		{Key: testKey2020, SuiteURL: "suite-2020"},
	})

	result := results[testKey2020]
	require.Error(t, result.err)
	assert.Equal(t, FailureExecution, result.kind)
	assert.ErrorIs(t, result.err, context.DeadlineExceeded)
}

func TestMatrixRunner_TimeoutDoesNotCancelSiblings(t *testing.T) {
	// One slow cell times out while the fast one completes. The
	// per-cell deadline must not leak into the sibling.
	h := &stubHarness{outputs: map[string][]byte{"fast": []byte("doc")}}
	slow := &stubHarness{
		outputs: map[string][]byte{"slow": []byte("doc")},
		delay:   time.Hour,
	}

	m := newMatrixRunner(h)
	m.timeout = 100 * time.Millisecond
	m.runner = routingHarness{"fast": h, "slow": slow}

	results := m.run(context.Background(), []MatrixCell{
		{Key: testKey2020, SuiteURL: "slow"},
		{Key: testKey2019, SuiteURL: "fast"},
	})

	assert.Error(t, results[testKey2020].err)
	assert.NoError(t, results[testKey2019].err)
}

// routingHarness dispatches to a different stub per suite URL.
type routingHarness map[string]*stubHarness

func (r routingHarness) Run(ctx context.Context, subjects []string, suiteURL string) ([]byte, error) {
	return r[suiteURL].Run(ctx, subjects, suiteURL)
}

func TestMatrixRunner_BoundedParallelism(t *testing.T) {
	var inFlight, peak atomic.Int32
	h := &countingHarness{inFlight: &inFlight, peak: &peak}

	m := newMatrixRunner(nil)
	m.runner = h
	m.maxParallel = 2

	cells := make([]MatrixCell, 6)
	for i := range cells {
		cells[i] = MatrixCell{Key: fmt.Sprintf("key-%d", i), SuiteURL: "suite"}
	}

	results := m.run(context.Background(), cells)

	assert.Len(t, results, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

type countingHarness struct {
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (h *countingHarness) Run(ctx context.Context, subjects []string, suiteURL string) ([]byte, error) {
	n := h.inFlight.Add(1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	h.inFlight.Add(-1)
	return []byte("doc"), nil
}

func TestMatrixRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &stubHarness{outputs: map[string][]byte{"suite": []byte("doc")}}
	m := newMatrixRunner(h)

	results := m.run(ctx, []MatrixCell{{Key: testKey2020, SuiteURL: "suite"}})

	result := results[testKey2020]
	require.Error(t, result.err)
	assert.Equal(t, FailureExecution, result.kind)
}
