// Package ytdlp wraps the yt-dlp CLI for search and audio acquisition.
//
// The client classifies failed downloads into the acquire failure kinds so
// the fallback runner never inspects tool output itself.
package ytdlp
