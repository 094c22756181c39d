package pipeline

import (
	"fmt"

	"github.com/compatpipe/compatpipe/report"
)

// Summarizer is the summarization collaborator: it reduces a raw report
// document to derived badge artifacts and a human-readable summary, and
// renders a document for a step-summary surface.
type Summarizer interface {
	Summarize(raw []byte) (report.BadgeSet, string, error)
	Render(raw []byte, format string) (string, error)
}

// DocumentSummarizer is the default Summarizer backed by the report
// package.
type DocumentSummarizer struct{}

// Summarize parses and validates the document, then derives its badge
// set and a plain-text summary. A truncated or corrupt document fails
// here rather than producing degenerate artifacts.
func (DocumentSummarizer) Summarize(raw []byte) (report.BadgeSet, string, error) {
	doc, err := report.Validate(raw)
	if err != nil {
		return nil, "", fmt.Errorf("unsummarizable report: %w", err)
	}
	badges, err := doc.GenerateBadges()
	if err != nil {
		return nil, "", fmt.Errorf("badge generation failed: %w", err)
	}
	text, err := report.Render(doc, "text")
	if err != nil {
		return nil, "", err
	}
	return badges, text, nil
}

// Render formats the document for a step-summary surface.
func (DocumentSummarizer) Render(raw []byte, format string) (string, error) {
	doc, err := report.Parse(raw)
	if err != nil {
		return "", err
	}
	return report.Render(doc, format)
}
