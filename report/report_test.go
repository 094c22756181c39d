package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dialect2020 = "https://json-schema.org/draft/2020-12/schema"

func docBytes(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func validDocument() []byte {
	return docBytes(
		`{"dialect":"`+dialect2020+`","implementations":{"example/go-jsonschema":{"name":"jsonschema","language":"go","dialects":["`+dialect2020+`","http://json-schema.org/draft-07/schema#"]},"example/py-oldlib":{"name":"oldlib","language":"python","dialects":["http://json-schema.org/draft-07/schema#"]}}}`,
		`{"seq":1,"case":{"description":"type keyword","schema":{"type":"integer"},"tests":[{"description":"an integer","instance":1,"valid":true},{"description":"a string","instance":"x","valid":false}]}}`,
		`{"seq":1,"implementation":"example/go-jsonschema","results":[{"valid":true},{"valid":false}],"expected":[true,false]}`,
		`{"seq":1,"implementation":"example/py-oldlib","caught":true,"message":"unsupported dialect"}`,
		`{"did_fail_fast":false}`,
	)
}

func TestParse_ValidDocument(t *testing.T) {
	doc, err := Parse(validDocument())
	require.NoError(t, err)

	assert.Equal(t, dialect2020, doc.Metadata.Dialect)
	assert.Len(t, doc.Metadata.Implementations, 2)
	require.Contains(t, doc.Cases, 1)
	assert.Equal(t, "type keyword", doc.Cases[1].Description)
	assert.Len(t, doc.Outcomes, 2)
	assert.False(t, doc.DidFailFast)
	assert.Equal(t, 2, doc.TotalTests())
	assert.False(t, doc.IsEmpty())
}

func TestParse_EmptyDocument(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrEmptyReport)

	_, err = Parse([]byte("\n\n"))
	assert.ErrorIs(t, err, ErrEmptyReport)
}

func TestParse_HeaderMissingDialect(t *testing.T) {
	_, err := Parse(docBytes(`{"implementations":{}}`))
	assert.ErrorIs(t, err, ErrInvalidReport)
}

func TestParse_DuplicateCase(t *testing.T) {
	_, err := Parse(docBytes(
		`{"dialect":"`+dialect2020+`"}`,
		`{"seq":1,"case":{"description":"a","schema":{},"tests":[]}}`,
		`{"seq":1,"case":{"description":"b","schema":{},"tests":[]}}`,
	))
	assert.ErrorIs(t, err, ErrInvalidReport)
}

func TestParse_OutcomeWithoutImplementation(t *testing.T) {
	_, err := Parse(docBytes(
		`{"dialect":"`+dialect2020+`"}`,
		`{"seq":1,"results":[{"valid":true}]}`,
	))
	assert.ErrorIs(t, err, ErrInvalidReport)
}

func TestValidate_Valid(t *testing.T) {
	doc, err := Validate(validDocument())
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestValidate_Truncated(t *testing.T) {
	// Same document with the footer dropped, as a crashed run would
	// leave behind.
	lines := strings.Split(strings.TrimRight(string(validDocument()), "\n"), "\n")
	truncated := docBytes(lines[:len(lines)-1]...)

	_, err := Validate(truncated)
	assert.ErrorIs(t, err, ErrTruncatedReport)
}

func TestValidate_DuplicateOutcome(t *testing.T) {
	_, err := Validate(docBytes(
		`{"dialect":"`+dialect2020+`"}`,
		`{"seq":1,"case":{"description":"a","schema":{},"tests":[{"description":"t","instance":1,"valid":true}]}}`,
		`{"seq":1,"implementation":"example/go-jsonschema","results":[{"valid":true}]}`,
		`{"seq":1,"implementation":"example/go-jsonschema","results":[{"valid":true}]}`,
		`{"did_fail_fast":false}`,
	))
	assert.ErrorIs(t, err, ErrInvalidReport)
}

func TestValidate_OutcomeForUnknownCase(t *testing.T) {
	_, err := Validate(docBytes(
		`{"dialect":"`+dialect2020+`"}`,
		`{"seq":7,"implementation":"example/go-jsonschema","results":[{"valid":true}]}`,
		`{"did_fail_fast":false}`,
	))
	assert.ErrorIs(t, err, ErrInvalidReport)
}

func TestParse_FailFastFooter(t *testing.T) {
	doc, err := Parse(docBytes(
		`{"dialect":"`+dialect2020+`"}`,
		`{"did_fail_fast":true}`,
	))
	require.NoError(t, err)
	assert.True(t, doc.DidFailFast)
}

func TestImplementationImages(t *testing.T) {
	doc, err := Parse(validDocument())
	require.NoError(t, err)

	images := doc.ImplementationImages()
	assert.ElementsMatch(t, []string{"example/go-jsonschema", "example/py-oldlib"}, images)
}
