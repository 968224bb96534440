package responseparse

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const bulletGlyph = '•'

// NormalizeLine strips a leading bullet or numbering marker, collapses
// whitespace runs to a single space and trims both ends. A leading "**" is
// bold emphasis and ends marker stripping.
func NormalizeLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	for s != "" {
		r, size := utf8.DecodeRuneInString(s)
		switch {
		case r == '*' && strings.HasPrefix(s, "**"):
			return strings.TrimSpace(s)
		case isMarkerRune(r), unicode.IsSpace(r):
			s = s[size:]
		default:
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// HasBulletPrefix reports whether the trimmed line starts like a list item:
// dash, asterisk, bullet glyph or digit.
func HasBulletPrefix(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r == '-' || r == '*' || r == bulletGlyph || (r >= '0' && r <= '9')
}

func isMarkerRune(r rune) bool {
	switch r {
	case '-', '*', bulletGlyph, '.', ')':
		return true
	}
	return r >= '0' && r <= '9'
}
