package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Markdown(t *testing.T) {
	doc, err := Parse(validDocument())
	require.NoError(t, err)

	out, err := Render(doc, "markdown")
	require.NoError(t, err)

	assert.Contains(t, out, "## Draft 2020-12")
	assert.Contains(t, out, "2 tests ran across 2 implementations.")
	assert.Contains(t, out, "| Implementation | Passed | Failed | Errored | Skipped |")
	assert.Contains(t, out, "| jsonschema (go) | 2 | 0 | 0 | 0 |")
	assert.Contains(t, out, "| oldlib (python) | 0 | 0 | 2 | 0 |")
}

func TestRender_Text(t *testing.T) {
	doc, err := Parse(validDocument())
	require.NoError(t, err)

	out, err := Render(doc, "text")
	require.NoError(t, err)

	assert.Contains(t, out, "Draft 2020-12: 2 tests, 2 implementations")
	assert.Contains(t, out, "  jsonschema (go): 2 passed, 0 failed, 0 errored, 0 skipped")
	assert.Contains(t, out, "  oldlib (python): 0 passed, 0 failed, 2 errored, 0 skipped")
}

func TestRender_UnknownImplementationFallsBackToImage(t *testing.T) {
	// The header omits metadata for the implementation so its image
	// name is used as the label.
	doc, err := Parse(docBytes(
		`{"dialect":"`+dialect2020+`"}`,
		`{"seq":1,"case":{"description":"a","schema":{},"tests":[{"description":"t","instance":1,"valid":true}]}}`,
		`{"seq":1,"implementation":"example/mystery","results":[{"valid":true}]}`,
		`{"did_fail_fast":false}`,
	))
	require.NoError(t, err)

	out, err := Render(doc, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "  example/mystery: 1 passed")
}

func TestRender_UnsupportedFormat(t *testing.T) {
	doc, err := Parse(validDocument())
	require.NoError(t, err)

	_, err = Render(doc, "html")
	assert.Error(t, err)
}
