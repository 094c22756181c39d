package report

import (
	"fmt"
	"strings"
)

// Render formats a report document for a human-readable step summary.
// Supported formats are "markdown" and "text".
func Render(doc *Document, format string) (string, error) {
	summary, err := doc.Summarize()
	if err != nil {
		return "", err
	}

	switch format {
	case "markdown":
		return renderMarkdown(doc, summary), nil
	case "text":
		return renderText(doc, summary), nil
	default:
		return "", fmt.Errorf("unsupported render format: %q", format)
	}
}

func renderMarkdown(doc *Document, summary *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", DialectShortname(doc.Metadata.Dialect))
	fmt.Fprintf(&b, "%d tests ran across %d implementations.\n\n",
		summary.TotalTests, len(summary.ByImplementation))
	b.WriteString("| Implementation | Passed | Failed | Errored | Skipped |\n")
	b.WriteString("| --- | ---: | ---: | ---: | ---: |\n")
	for _, image := range summary.Images() {
		count := summary.ByImplementation[image]
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d |\n",
			implementationLabel(doc, image),
			summary.Passed(image), count.FailedTests, count.ErroredTests, count.SkippedTests)
	}
	return b.String()
}

func renderText(doc *Document, summary *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d tests, %d implementations\n",
		DialectShortname(doc.Metadata.Dialect), summary.TotalTests, len(summary.ByImplementation))
	for _, image := range summary.Images() {
		count := summary.ByImplementation[image]
		fmt.Fprintf(&b, "  %s: %d passed, %d failed, %d errored, %d skipped\n",
			implementationLabel(doc, image),
			summary.Passed(image), count.FailedTests, count.ErroredTests, count.SkippedTests)
	}
	return b.String()
}

func implementationLabel(doc *Document, image string) string {
	if impl, ok := doc.Metadata.Implementations[image]; ok && impl.Name != "" {
		return fmt.Sprintf("%s (%s)", impl.Name, impl.Language)
	}
	return image
}
