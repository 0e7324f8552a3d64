package ingestion

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// normalizeText implements spec §4.2 step 3: Unicode NFKC normalization,
// C0/C1 control character stripping, and whitespace collapsing.
func normalizeText(raw string) string {
	s := norm.NFKC.String(raw)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isControlRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	return collapseWhitespace(s)
}

// isControlRune matches the C0 (U+0000-U+001F, U+007F) and C1
// (U+0080-U+009F) control ranges, excluding the whitespace runs
// collapseWhitespace normalizes separately.
func isControlRune(r rune) bool {
	switch r {
	case '\n', '\t', '\r':
		return false
	}
	if r <= 0x1F || r == 0x7F {
		return true
	}
	if r >= 0x80 && r <= 0x9F {
		return true
	}
	return false
}

// collapseWhitespace reduces any run of whitespace within a line to a
// single space and trims the result, keeping line breaks and collapsing
// runs of blank lines to a single blank line ("\n\n").
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		fields := strings.FieldsFunc(line, unicode.IsSpace)
		collapsed := strings.Join(fields, " ")
		out = append(out, strings.TrimSpace(collapsed))
	}
	joined := strings.Join(out, "\n")
	for strings.Contains(joined, "\n\n\n") {
		joined = strings.ReplaceAll(joined, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(joined)
}
