package ytdlp

import (
	"regexp"
	"strings"

	"stemforge/internal/acquire"
)

// authPatterns match yt-dlp messages that ask for sign-in, age verification,
// or a bot check. Word boundaries keep "age" from matching "page".
var authPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bsign in\b`),
	regexp.MustCompile(`\blog ?in\b`),
	regexp.MustCompile(`\bage\b`),
	regexp.MustCompile(`\bbot\b`),
	regexp.MustCompile(`\bcookies\b`),
}

// formatPatterns mean the download finished but conversion did not.
var formatPatterns = []string{
	"postprocessing:",
	"audio conversion failed",
}

// Classify maps yt-dlp failure output to an acquire failure kind.
func Classify(output string) acquire.Kind {
	lowered := strings.ToLower(output)
	for _, pattern := range authPatterns {
		if pattern.MatchString(lowered) {
			return acquire.KindAuthRequired
		}
	}
	for _, pattern := range formatPatterns {
		if strings.Contains(lowered, pattern) {
			return acquire.KindFormat
		}
	}
	return acquire.KindTransient
}
