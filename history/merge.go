package history

// Merge combines freshly validated entries with the prior snapshot into
// the next generation. For each key the fresh entry wins; a key whose
// run failed or produced an invalid document falls back to the prior
// snapshot's entry; a key absent from both stays absent. The prior
// snapshot becomes the new snapshot's lookback with its own lookback
// stripped, so the embedded chain is depth one by construction even if
// the prior snapshot arrived over-nested.
//
// Merge is pure: it has no side effect beyond the returned value, and
// merging the same inputs twice yields identical snapshots.
func Merge(keys []string, prior *Snapshot, fresh map[string]Entry) *Snapshot {
	next := NewSnapshot()

	for _, key := range keys {
		if entry, ok := fresh[key]; ok {
			next.Entries[key] = entry
			continue
		}
		if entry, ok := prior.Entry(key); ok {
			next.Entries[key] = entry
		}
	}

	if prior != nil {
		next.Previous = prior.WithoutPrevious()
	}

	return next
}

// CarriedKeys returns the keys whose entries in the merged snapshot
// were carried forward from the prior generation rather than produced
// by the current run.
func CarriedKeys(keys []string, prior *Snapshot, fresh map[string]Entry) []string {
	var carried []string
	for _, key := range keys {
		if _, ok := fresh[key]; ok {
			continue
		}
		if _, ok := prior.Entry(key); ok {
			carried = append(carried, key)
		}
	}
	return carried
}
