package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer maps filesystem-unsafe characters to separators or drops them.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// foldDiacritics decomposes text and strips combining marks ("Beyoncé" -> "Beyonce").
func foldDiacritics(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// SanitizeTitle turns a media title into an archive base name: diacritics
// are folded, only letters, digits, dashes, underscores and dots survive,
// whitespace runs become a single underscore, and the result is capped at
// maxLen runes. Fallback is returned when nothing usable remains.
func SanitizeTitle(title string, maxLen int, fallback string) string {
	value := foldDiacritics(SanitizeFileName(title))
	var b strings.Builder
	pendingSpace := false
	for _, r := range value {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.':
			if pendingSpace {
				b.WriteByte('_')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "._-")
	if maxLen > 0 {
		if r := []rune(out); len(r) > maxLen {
			out = strings.TrimRight(string(r[:maxLen]), "._-")
		}
	}
	if out == "" {
		return fallback
	}
	return out
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
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
