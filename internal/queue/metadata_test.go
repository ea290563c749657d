package queue_test

import (
	"testing"

	"stemforge/internal/queue"
)

func TestExternalStemsParsesPrefixedKeys(t *testing.T) {
	stems := queue.ExternalStems(map[string]string{
		"stem.Guitar": " /in/guitar.wav ",
		"stem.":       "/in/nameless.wav",
		"stem.keys":   "",
		"title":       "Song",
	})
	if len(stems) != 1 || stems["guitar"] != "/in/guitar.wav" {
		t.Fatalf("unexpected external stems: %+v", stems)
	}
}
