package queue

import (
	"sort"
	"strings"
)

// Metadata keys understood by the pipeline.
const (
	// MetadataAssetPath names a pre-fetched audio file that lets Acquire be skipped.
	MetadataAssetPath = "asset_path"
	// MetadataTitle overrides the title used to name the archive.
	MetadataTitle = "title"
	// MetadataStemPrefix marks stems supplied by an independent source, e.g. "stem.guitar".
	MetadataStemPrefix = "stem."
)

// ExternalStems extracts stem name to path entries supplied through metadata.
func ExternalStems(metadata map[string]string) map[string]string {
	stems := make(map[string]string)
	for key, value := range metadata {
		if !strings.HasPrefix(key, MetadataStemPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(key, MetadataStemPrefix)))
		path := strings.TrimSpace(value)
		if name == "" || path == "" {
			continue
		}
		stems[name] = path
	}
	return stems
}

// MetadataKeys returns the sorted keys of a metadata map for stable display.
func MetadataKeys(metadata map[string]string) []string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizeMetadata(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for key, value := range src {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		dst[key] = value
	}
	return dst
}
