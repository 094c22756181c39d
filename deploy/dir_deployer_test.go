package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compatpipe/compatpipe/history"
	"github.com/compatpipe/compatpipe/report"
)

func testSnapshot() *history.Snapshot {
	snap := history.NewSnapshot()
	snap.Entries[key2020] = history.Entry{
		Report: []byte("report-bytes"),
		Badges: report.BadgeSet{"go-jsonschema/supported_versions.json": []byte("badge-bytes")},
	}
	return snap
}

func TestDirDeployer_Deploy(t *testing.T) {
	root := t.TempDir()
	d, err := NewDirDeployer(root, testLogger())
	require.NoError(t, err)

	require.NoError(t, d.Deploy(context.Background(), "site", testSnapshot()))

	data, err := os.ReadFile(filepath.Join(root, "site", "reports", "draft-2020-12.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, []byte("report-bytes"), data)

	data, err = os.ReadFile(filepath.Join(root, "site", "go-jsonschema", "supported_versions.json"))
	require.NoError(t, err)
	assert.Equal(t, []byte("badge-bytes"), data)
}

func TestDirDeployer_RedeployReplacesSite(t *testing.T) {
	root := t.TempDir()
	d, err := NewDirDeployer(root, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.Deploy(ctx, "site", testSnapshot()))

	// Second generation drops the badge and changes the report.
	snap := history.NewSnapshot()
	snap.Entries[key2020] = history.Entry{Report: []byte("newer-bytes")}
	require.NoError(t, d.Deploy(ctx, "site", snap))

	data, err := os.ReadFile(filepath.Join(root, "site", "reports", "draft-2020-12.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, []byte("newer-bytes"), data)

	// The stale badge from the first deploy is gone: the site is
	// swapped whole, not patched.
	_, err = os.Stat(filepath.Join(root, "site", "go-jsonschema", "supported_versions.json"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(root, "site.old"))
	assert.True(t, os.IsNotExist(err))
}

func TestDirDeployer_CancelledContext(t *testing.T) {
	root := t.TempDir()
	d, err := NewDirDeployer(root, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = d.Deploy(ctx, "site", testSnapshot())
	require.ErrorIs(t, err, context.Canceled)

	// Nothing was activated.
	_, statErr := os.Stat(filepath.Join(root, "site"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDirDeployer_TargetsAreIsolated(t *testing.T) {
	root := t.TempDir()
	d, err := NewDirDeployer(root, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.Deploy(ctx, "staging", testSnapshot()))
	require.NoError(t, d.Deploy(ctx, "production", testSnapshot()))

	for _, target := range []string{"staging", "production"} {
		_, err := os.Stat(filepath.Join(root, target, "reports", "draft-2020-12.jsonl"))
		assert.NoError(t, err, "target %s", target)
	}
}
