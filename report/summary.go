package report

import (
	"fmt"
	"sort"
)

// Count tallies unsuccessful tests for one implementation.
type Count struct {
	FailedTests  int `json:"failed_tests"`
	ErroredTests int `json:"errored_tests"`
	SkippedTests int `json:"skipped_tests"`
}

// Unsuccessful returns the total of all non-passing tests, skips
// included.
func (c Count) Unsuccessful() int {
	return c.FailedTests + c.ErroredTests + c.SkippedTests
}

// Summary is the reduction of a report document to per-implementation
// counts.
type Summary struct {
	ByImplementation map[string]Count `json:"by_implementation"`
	TotalTests       int              `json:"total_tests"`
}

// Passed returns the number of passing tests for the given
// implementation image.
func (s *Summary) Passed(image string) int {
	return s.TotalTests - s.ByImplementation[image].Unsuccessful()
}

// Images returns the summarized implementation images in stable order.
func (s *Summary) Images() []string {
	images := make([]string, 0, len(s.ByImplementation))
	for image := range s.ByImplementation {
		images = append(images, image)
	}
	sort.Strings(images)
	return images
}

// Summarize reduces the document to per-implementation counts.
// A duplicate outcome for the same (case, implementation) pair means
// the producing run misbehaved and the document cannot be trusted.
func (d *Document) Summarize() (*Summary, error) {
	seen := make(map[int]map[string]bool, len(d.Cases))
	summary := &Summary{
		ByImplementation: make(map[string]Count),
		TotalTests:       d.TotalTests(),
	}

	for _, outcome := range d.Outcomes {
		byImpl := seen[outcome.Seq]
		if byImpl == nil {
			byImpl = make(map[string]bool)
			seen[outcome.Seq] = byImpl
		}
		if byImpl[outcome.Implementation] {
			return nil, fmt.Errorf("%w: duplicate result for case %d from %s",
				ErrInvalidReport, outcome.Seq, outcome.Implementation)
		}
		byImpl[outcome.Implementation] = true

		c, ok := d.Cases[outcome.Seq]
		if !ok {
			return nil, fmt.Errorf("%w: result for unknown case %d", ErrInvalidReport, outcome.Seq)
		}

		count := summary.ByImplementation[outcome.Implementation]
		count = countOutcome(count, c, outcome)
		summary.ByImplementation[outcome.Implementation] = count
	}

	return summary, nil
}

// countOutcome folds one case outcome into an implementation's counts.
func countOutcome(count Count, c Case, outcome CaseOutcome) Count {
	switch {
	case outcome.Caught != nil:
		// The whole case errored.
		count.ErroredTests += len(c.Tests)
	case outcome.Skipped:
		count.SkippedTests += len(c.Tests)
	default:
		for i, result := range outcome.Results {
			switch {
			case result.Errored:
				count.ErroredTests++
			case result.Skipped:
				count.SkippedTests++
			case result.Valid == nil:
				count.ErroredTests++
			default:
				expected := expectedFor(c, outcome, i)
				if expected != nil && *result.Valid != *expected {
					count.FailedTests++
				}
			}
		}
	}
	return count
}

// expectedFor returns the expected verdict for test i, preferring the
// outcome's recorded expectations over the case definition.
func expectedFor(c Case, outcome CaseOutcome, i int) *bool {
	if i < len(outcome.Expected) && outcome.Expected[i] != nil {
		return outcome.Expected[i]
	}
	if i < len(c.Tests) {
		return c.Tests[i].Valid
	}
	return nil
}
