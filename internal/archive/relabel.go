package archive

import (
	"slices"
	"strings"
)

// Canonical stem names.
const (
	StemDrums  = "drums"
	StemBass   = "bass"
	StemVocals = "vocals"
	StemOther  = "other"
	StemGuitar = "guitar"
	StemSynth  = "synth"
)

// leftoverLabels is the preference order for the generic leftover stem.
var leftoverLabels = []string{StemGuitar, StemSynth}

// Relabel returns a new stem mapping with the leftover stem renamed. A label
// is occupied when the separator produced it or when it appears in reserved
// (stems supplied by an independent source). The result does not depend on
// map iteration order. When every label is occupied the leftover keeps its
// generic name.
func Relabel(stems map[string]string, reserved ...string) map[string]string {
	out := make(map[string]string, len(stems))
	occupied := make(map[string]bool, len(stems)+len(reserved))
	for name, path := range stems {
		key := strings.ToLower(strings.TrimSpace(name))
		out[key] = path
		occupied[key] = true
	}
	for _, name := range reserved {
		occupied[strings.ToLower(strings.TrimSpace(name))] = true
	}

	leftover, ok := out[StemOther]
	if !ok {
		return out
	}
	idx := slices.IndexFunc(leftoverLabels, func(label string) bool { return !occupied[label] })
	if idx < 0 {
		return out
	}
	delete(out, StemOther)
	out[leftoverLabels[idx]] = leftover
	return out
}

// Names returns the stem names of a mapping in sorted order.
func Names(stems map[string]string) []string {
	names := make([]string, 0, len(stems))
	for name := range stems {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
