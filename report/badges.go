package report

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// BadgeSet maps site-relative file paths to rendered badge JSON.
// Badges are derived artifacts: the pipeline carries them alongside a
// report but never looks inside.
type BadgeSet map[string][]byte

// shieldsBadge is the shields.io endpoint schema.
type shieldsBadge struct {
	SchemaVersion int    `json:"schemaVersion"`
	Label         string `json:"label"`
	Message       string `json:"message"`
	Color         string `json:"color"`
}

// GenerateBadges renders one compliance badge per implementation that
// supports the document's dialect, plus a supported-versions badge per
// implementation.
func (d *Document) GenerateBadges() (BadgeSet, error) {
	summary, err := d.Summarize()
	if err != nil {
		return nil, err
	}

	label := DialectShortname(d.Metadata.Dialect)
	total := summary.TotalTests
	badges := make(BadgeSet)

	for image, impl := range d.Metadata.Implementations {
		if !supportsDialect(impl, d.Metadata.Dialect) {
			continue
		}

		dir := fmt.Sprintf("%s-%s", impl.Language, impl.Name)

		pct := 0
		if total > 0 {
			pct = (summary.Passed(image) * 100) / total
		}
		// Red fades to green as the pass percentage climbs.
		color := fmt.Sprintf("%02x%02x00", 100-pct, pct)

		compliance, err := json.Marshal(shieldsBadge{
			SchemaVersion: 1,
			Label:         label,
			Message:       fmt.Sprintf("%d%% Passing", pct),
			Color:         color,
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling compliance badge for %s: %w", image, err)
		}
		name := strings.ReplaceAll(label, " ", "_") + ".json"
		badges[path.Join(dir, "compliance", name)] = compliance

		supported := make([]string, 0, len(impl.Dialects))
		for i := len(impl.Dialects) - 1; i >= 0; i-- {
			supported = append(supported, draftNumber(impl.Dialects[i]))
		}
		versions, err := json.Marshal(shieldsBadge{
			SchemaVersion: 1,
			Label:         "JSON Schema Versions",
			Message:       strings.Join(supported, ", "),
			Color:         "lightgreen",
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling versions badge for %s: %w", image, err)
		}
		badges[path.Join(dir, "supported_versions.json")] = versions
	}

	return badges, nil
}

func supportsDialect(impl Implementation, dialect string) bool {
	for _, d := range impl.Dialects {
		if d == dialect {
			return true
		}
	}
	return false
}
