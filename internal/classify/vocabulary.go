package classify

import (
	"sort"

	"github.com/ppiankov/symptra/internal/reference"
)

// Vocabulary is the ordered symptom list that fixes feature positions.
// The order captured at training time travels inside the Bundle and must be
// used verbatim for every later vectorization.
type Vocabulary []string

// NewVocabulary builds a sorted, deduplicated vocabulary of canonical symptoms
func NewVocabulary(symptoms []string) Vocabulary {
	seen := make(map[string]struct{}, len(symptoms))
	out := make(Vocabulary, 0, len(symptoms))
	for _, s := range symptoms {
		c := reference.Canonical(s)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Vectorize returns a binary feature vector of length len(v): position i is
// 1 when v[i] is among symptoms. Symptoms outside the vocabulary are dropped.
func (v Vocabulary) Vectorize(symptoms []string) []uint8 {
	present := make(map[string]struct{}, len(symptoms))
	for _, s := range symptoms {
		present[reference.Canonical(s)] = struct{}{}
	}
	vec := make([]uint8, len(v))
	for i, s := range v {
		if _, ok := present[s]; ok {
			vec[i] = 1
		}
	}
	return vec
}

// Contains reports whether the canonical form of symptom is in the vocabulary
func (v Vocabulary) Contains(symptom string) bool {
	c := reference.Canonical(symptom)
	i := sort.SearchStrings(v, c)
	return i < len(v) && v[i] == c
}
