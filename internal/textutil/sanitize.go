package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxTitleRunes caps sanitized titles when no explicit limit is given.
const DefaultMaxTitleRunes = 120

// SanitizeTitle converts a display title into a single safe path segment.
//
// Accents are folded (NFKD with combining marks removed). Letters, digits,
// '.', '-' and '_' are kept; every other rune, spaces included, becomes '_'.
// Runs of '_' collapse to one and leading or trailing '.', '-', '_' are
// trimmed, so the result can never be "." or "..". Interior dots survive
// ("a..b" stays "a..b"); with no separator in the output they cannot form a
// path traversal. The result is capped at
// maxRunes runes (DefaultMaxTitleRunes when maxRunes <= 0). An empty result
// yields fallback.
func SanitizeTitle(title string, maxRunes int, fallback string) string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxTitleRunes
	}
	folded := foldMarks(strings.TrimSpace(title))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range folded {
		keep := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-'
		if !keep {
			if lastUnderscore {
				continue
			}
			b.WriteByte('_')
			lastUnderscore = true
			continue
		}
		b.WriteRune(r)
		lastUnderscore = false
	}

	out := strings.Trim(b.String(), "._-")
	if r := []rune(out); len(r) > maxRunes {
		out = strings.Trim(string(r[:maxRunes]), "._-")
	}
	if out == "" {
		return fallback
	}
	return out
}

func foldMarks(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return folded
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
