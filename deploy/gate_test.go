package deploy

import (
	"context"
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

func TestGate_UncontestedBeginAndRelease(t *testing.T) {
	gate := NewGate(testLogger())

	ctx, release, err := gate.Begin(context.Background(), "site")
	require.NoError(t, err)
	assert.NoError(t, ctx.Err())
	assert.False(t, Superseded(ctx))
	release()

	// The slot is free again.
	ctx2, release2, err := gate.Begin(context.Background(), "site")
	require.NoError(t, err)
	assert.NoError(t, ctx2.Err())
	release2()
}

func TestGate_NewerCancelsOlder(t *testing.T) {
	gate := NewGate(testLogger(), WithDrainTimeout(5*time.Second))

	olderCtx, olderRelease, err := gate.Begin(context.Background(), "site")
	require.NoError(t, err)

	// The older publish drains as soon as it is cancelled.
	go func() {
		<-olderCtx.Done()
		olderRelease()
	}()

	newerCtx, newerRelease, err := gate.Begin(context.Background(), "site")
	require.NoError(t, err)
	defer newerRelease()

	assert.True(t, Superseded(olderCtx))
	assert.ErrorIs(t, context.Cause(olderCtx), ErrSuperseded)
	assert.NoError(t, newerCtx.Err())
	assert.False(t, Superseded(newerCtx))
}

func TestGate_TargetsAreIndependent(t *testing.T) {
	gate := NewGate(testLogger())

	ctxA, releaseA, err := gate.Begin(context.Background(), "site-a")
	require.NoError(t, err)
	defer releaseA()

	// A different target claims its own slot without touching site-a.
	ctxB, releaseB, err := gate.Begin(context.Background(), "site-b")
	require.NoError(t, err)
	defer releaseB()

	assert.NoError(t, ctxA.Err())
	assert.NoError(t, ctxB.Err())
}

func TestGate_DrainTimeout(t *testing.T) {
	gate := NewGate(testLogger(), WithDrainTimeout(50*time.Millisecond))

	// The older publish never drains.
	olderCtx, olderRelease, err := gate.Begin(context.Background(), "site")
	require.NoError(t, err)
	defer olderRelease()

	_, _, err = gate.Begin(context.Background(), "site")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.True(t, Superseded(olderCtx))
}

func TestGate_CallerCancellationWhileWaiting(t *testing.T) {
	gate := NewGate(testLogger(), WithDrainTimeout(time.Minute))

	_, olderRelease, err := gate.Begin(context.Background(), "site")
	require.NoError(t, err)
	defer olderRelease()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err = gate.Begin(ctx, "site")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGate_LatestWinsUnderContention(t *testing.T) {
	gate := NewGate(testLogger(), WithDrainTimeout(5*time.Second))

	// Each claimant drains promptly once cancelled, so every newer
	// Begin succeeds and exactly one flight holds the slot at the end.
	var contexts []context.Context
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		ctx, release, err := gate.Begin(context.Background(), "site")
		require.NoError(t, err)
		contexts = append(contexts, ctx)

		wg.Add(1)
		go func(ctx context.Context, release func()) {
			defer wg.Done()
			<-ctx.Done()
			release()
		}(ctx, release)
	}

	final, finalRelease, err := gate.Begin(context.Background(), "site")
	require.NoError(t, err)
	wg.Wait()

	for _, ctx := range contexts {
		assert.True(t, Superseded(ctx))
	}
	assert.NoError(t, final.Err())
	finalRelease()
}

func TestSuperseded_PlainCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Superseded(ctx))
}
