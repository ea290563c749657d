// Package media holds the types passed between the locate, acquire, and
// separate stages, plus direct-reference parsing for video URLs.
package media

import (
	"net/url"
	"regexp"
	"strings"
)

// Locator is a resolved reference to one remote media item.
type Locator struct {
	ID    string
	URL   string
	Title string
	// Direct is true when the locator was parsed from the query without a search.
	Direct bool
}

// Asset is an acquired raw audio file.
type Asset struct {
	Path  string
	Title string
	// Prefetched marks assets supplied by the caller instead of downloaded.
	Prefetched bool
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// WatchURL builds the canonical watch URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// ParseDirect recognizes watch, short-link, shorts, embed, and live URLs and
// returns a locator without any network access.
func ParseDirect(query string) (Locator, bool) {
	raw := strings.TrimSpace(query)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return Locator{}, false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Locator{}, false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))

	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		switch {
		case len(segments) == 1 && segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live" || segments[0] == "v"):
			id = segments[1]
		}
	default:
		return Locator{}, false
	}
	if !videoIDPattern.MatchString(id) {
		return Locator{}, false
	}
	return Locator{ID: id, URL: WatchURL(id), Direct: true}, true
}

func firstSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}
