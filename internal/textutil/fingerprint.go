package textutil

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Fingerprint is a term-frequency vector over normalized tokens.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint builds a fingerprint from text. It returns nil when the
// text has no usable tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{tokens: counts, norm: math.Sqrt(norm)}
}

// Tokenize folds diacritics, lowercases, and splits on anything that is not
// a letter or digit. Tokens shorter than two runes are dropped.
func Tokenize(text string) []string {
	folded := strings.ToLower(foldDiacritics(text))
	raw := tokenSplitPattern.Split(folded, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len([]rune(token)) < 2 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of distinct tokens.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// CosineSimilarity returns the cosine of the angle between two fingerprints,
// or 0 when either is empty.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// BestMatch returns the index of the candidate most similar to query. Ties
// keep the earliest candidate, so an uninformative query picks index 0.
// It returns -1 for an empty candidate list.
func BestMatch(query string, candidates []string) (int, float64) {
	if len(candidates) == 0 {
		return -1, 0
	}
	want := NewFingerprint(query)
	best, bestScore := 0, -1.0
	for idx, candidate := range candidates {
		score := CosineSimilarity(want, NewFingerprint(candidate))
		if score > bestScore {
			best, bestScore = idx, score
		}
	}
	return best, bestScore
}
