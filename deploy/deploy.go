// Package deploy publishes merged history snapshots to a static site
// target. Deployment is gated: at most one publish is in flight per
// target, and a newer run's publish supersedes and cancels an older
// in-flight one.
package deploy

import (
	"context"
	"path"
	"strings"

	"github.com/compatpipe/compatpipe/history"
	"github.com/compatpipe/compatpipe/report"
)

// Deployer pushes a snapshot's site bundle to a deployment target.
// Implementations must honor context cancellation mid-flight.
type Deployer interface {
	Deploy(ctx context.Context, target string, snap *history.Snapshot) error
}

// BundleFiles flattens a snapshot into the site's file layout: one raw
// report per matrix key under reports/, badge files at their
// implementation-relative paths, and the prior generation mirrored
// under previous/. The prior generation never contributes its own
// previous/ subtree; the snapshot's lookback chain is depth one.
func BundleFiles(snap *history.Snapshot) map[string][]byte {
	files := make(map[string][]byte)
	addGeneration(files, "", snap)
	if snap.Previous != nil {
		addGeneration(files, "previous", snap.Previous)
	}
	return files
}

func addGeneration(files map[string][]byte, prefix string, snap *history.Snapshot) {
	for key, entry := range snap.Entries {
		files[path.Join(prefix, "reports", keySlug(key)+".jsonl")] = entry.Report
		for badgePath, badge := range entry.Badges {
			files[path.Join(prefix, badgePath)] = badge
		}
	}
}

// keySlug turns a matrix key into a filesystem-safe name, preferring
// the dialect's display label when one is known.
func keySlug(key string) string {
	name := strings.ToLower(report.DialectShortname(key))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
