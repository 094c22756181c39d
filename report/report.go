// Package report models the structured report document emitted by a
// test-execution run against a set of subject implementations.
//
// A report document is a sequence of JSON lines: a metadata header, one
// line per test case, one line per (case, implementation) outcome, and a
// footer marking orderly completion. The package parses documents,
// validates that they are well-formed and non-degenerate, and reduces
// them to per-implementation pass/fail/error summaries.
package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Line scanner limit. Individual schemas can be large but a single line
// beyond this indicates a runaway producer.
const maxLineBytes = 16 * 1024 * 1024

var (
	// ErrEmptyReport indicates a document with no metadata header.
	ErrEmptyReport = errors.New("empty report")

	// ErrTruncatedReport indicates a document without a completion
	// footer, typically the product of a crashed or resource-starved
	// run.
	ErrTruncatedReport = errors.New("truncated report: missing completion footer")

	// ErrInvalidReport indicates a structurally malformed document.
	ErrInvalidReport = errors.New("invalid report")
)

// RunMetadata is the header line of a report document.
type RunMetadata struct {
	Dialect         string                    `json:"dialect"`
	Implementations map[string]Implementation `json:"implementations"`
	HarnessVersion  string                    `json:"harness_version,omitempty"`
	Started         time.Time                 `json:"started"`
}

// Implementation is the self-reported metadata for one subject
// implementation, keyed in RunMetadata by its image identifier.
type Implementation struct {
	Name     string   `json:"name"`
	Language string   `json:"language"`
	Image    string   `json:"image"`
	Dialects []string `json:"dialects,omitempty"`
}

// Case is one test case from the suite: a schema plus the instances
// checked against it.
type Case struct {
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
	Tests       []Test          `json:"tests"`
}

// Test is a single instance within a case.
type Test struct {
	Description string          `json:"description"`
	Instance    json.RawMessage `json:"instance"`
	Valid       *bool           `json:"valid,omitempty"`
}

// TestResult is one implementation's verdict on a single test.
type TestResult struct {
	Valid   *bool           `json:"valid,omitempty"`
	Errored bool            `json:"errored,omitempty"`
	Skipped bool            `json:"skipped,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
}

// CaseOutcome is one implementation's outcome for one case: either a
// per-test result list, an uncaught error, or a skip.
type CaseOutcome struct {
	Seq            int             `json:"seq"`
	Implementation string          `json:"implementation"`
	Results        []TestResult    `json:"results,omitempty"`
	Expected       []*bool         `json:"expected,omitempty"`
	Caught         *bool           `json:"caught,omitempty"`
	Skipped        bool            `json:"skipped,omitempty"`
	Message        string          `json:"message,omitempty"`
	Context        json.RawMessage `json:"context,omitempty"`
}

// Document is a fully parsed report.
type Document struct {
	Metadata    RunMetadata
	Cases       map[int]Case
	Outcomes    []CaseOutcome
	DidFailFast bool

	// sawFooter records whether the completion footer line was present.
	sawFooter bool
}

// caseLine is the wire shape of a case registration line.
type caseLine struct {
	Seq  *int  `json:"seq"`
	Case *Case `json:"case"`
}

// footerLine is the wire shape of the completion footer.
type footerLine struct {
	DidFailFast *bool `json:"did_fail_fast"`
}

// Parse reads a report document from its raw JSON-lines form.
// It fails on malformed lines but performs no semantic validation;
// use Validate for the full well-formedness check.
func Parse(raw []byte) (*Document, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	doc := &Document{Cases: make(map[int]Case)}
	lineNo := 0

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lineNo++

		if lineNo == 1 {
			if err := json.Unmarshal(line, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("%w: bad header: %v", ErrInvalidReport, err)
			}
			if doc.Metadata.Dialect == "" {
				return nil, fmt.Errorf("%w: header missing dialect", ErrInvalidReport)
			}
			continue
		}

		// The footer terminates the document.
		var footer footerLine
		if err := json.Unmarshal(line, &footer); err == nil && footer.DidFailFast != nil {
			doc.DidFailFast = *footer.DidFailFast
			doc.sawFooter = true
			break
		}

		// Case registration lines carry a "case" object.
		var cl caseLine
		if err := json.Unmarshal(line, &cl); err == nil && cl.Case != nil && cl.Seq != nil {
			if _, dup := doc.Cases[*cl.Seq]; dup {
				return nil, fmt.Errorf("%w: duplicate case %d", ErrInvalidReport, *cl.Seq)
			}
			doc.Cases[*cl.Seq] = *cl.Case
			continue
		}

		// Everything else is a per-implementation outcome.
		var outcome CaseOutcome
		if err := json.Unmarshal(line, &outcome); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidReport, lineNo, err)
		}
		if outcome.Implementation == "" {
			return nil, fmt.Errorf("%w: line %d: outcome without implementation", ErrInvalidReport, lineNo)
		}
		doc.Outcomes = append(doc.Outcomes, outcome)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	if lineNo == 0 {
		return nil, ErrEmptyReport
	}

	return doc, nil
}

// Validate parses raw document bytes and checks the document is
// well-formed and non-degenerate: it has a header, an orderly
// completion footer, and a computable summary. The returned error
// is the reason the document must not enter history.
func Validate(raw []byte) (*Document, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if !doc.sawFooter {
		return nil, ErrTruncatedReport
	}
	if _, err := doc.Summarize(); err != nil {
		return nil, err
	}
	return doc, nil
}

// TotalTests returns the number of individual tests across all cases.
func (d *Document) TotalTests() int {
	total := 0
	for _, c := range d.Cases {
		total += len(c.Tests)
	}
	return total
}

// IsEmpty reports whether the document registered no cases at all.
func (d *Document) IsEmpty() bool {
	return len(d.Cases) == 0
}

// ImplementationImages returns the image identifiers of all subject
// implementations named in the header.
func (d *Document) ImplementationImages() []string {
	images := make([]string, 0, len(d.Metadata.Implementations))
	for image := range d.Metadata.Implementations {
		images = append(images, image)
	}
	return images
}
