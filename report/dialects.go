package report

import "strings"

// dialectShortnames maps specification-version URIs to display labels.
var dialectShortnames = map[string]string{
	"https://json-schema.org/draft/2020-12/schema": "Draft 2020-12",
	"https://json-schema.org/draft/2019-09/schema": "Draft 2019-09",
	"http://json-schema.org/draft-07/schema#":      "Draft 7",
	"http://json-schema.org/draft-06/schema#":      "Draft 6",
	"http://json-schema.org/draft-04/schema#":      "Draft 4",
	"http://json-schema.org/draft-03/schema#":      "Draft 3",
}

// DialectShortname returns the display label for a dialect URI, or the
// URI itself when no label is known.
func DialectShortname(uri string) string {
	if name, ok := dialectShortnames[uri]; ok {
		return name
	}
	return uri
}

// draftNumber strips the "Draft " prefix from a dialect label, used for
// the compact supported-versions listing.
func draftNumber(uri string) string {
	return strings.TrimPrefix(DialectShortname(uri), "Draft ")
}
