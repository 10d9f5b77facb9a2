// Package extract turns free text into a canonical symptom set plus
// auxiliary entity mentions.
package extract

import (
	"context"
	"sort"

	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/model"
	"github.com/ppiankov/symptra/internal/reference"
)

// Extractor finds catalog symptoms in text. It never fails: text without
// matches yields an empty extraction.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text string) model.Extraction
}

// EntityRecognizer labels mentions such as dates or durations in text
type EntityRecognizer interface {
	Name() string
	Recognize(ctx context.Context, text string) (map[string]string, error)
}

// availabilityChecker is implemented by recognizers backed by an external service
type availabilityChecker interface {
	IsAvailable(ctx context.Context) bool
}

// SubstringExtractor matches catalog phrases anywhere in the lowercased text
type SubstringExtractor struct {
	catalog *Catalog
}

// NewSubstringExtractor creates a substring-only extractor
func NewSubstringExtractor(catalog *Catalog) *SubstringExtractor {
	return &SubstringExtractor{catalog: catalog}
}

// Name returns the extractor name
func (e *SubstringExtractor) Name() string {
	return "substring"
}

// Extract scans the text for catalog phrases
func (e *SubstringExtractor) Extract(ctx context.Context, text string) model.Extraction {
	return model.Extraction{
		Symptoms: dedupe(e.catalog.scanSubstrings(reference.Canonical(text))),
		Entities: map[string]string{},
	}
}

// LinguisticExtractor matches whole token sequences, unions them with the
// substring scan and attaches entities from its recognizer.
type LinguisticExtractor struct {
	catalog    *Catalog
	recognizer EntityRecognizer
}

// NewLinguisticExtractor creates a token-matching extractor.
// recognizer may be nil, in which case no entities are reported.
func NewLinguisticExtractor(catalog *Catalog, recognizer EntityRecognizer) *LinguisticExtractor {
	return &LinguisticExtractor{catalog: catalog, recognizer: recognizer}
}

// Name returns the extractor name
func (e *LinguisticExtractor) Name() string {
	if e.recognizer == nil {
		return "linguistic"
	}
	return "linguistic+" + e.recognizer.Name()
}

// Recognizer returns the entity recognizer, which may be nil
func (e *LinguisticExtractor) Recognizer() EntityRecognizer {
	return e.recognizer
}

// Extract runs both phrase scans and the entity recognizer
func (e *LinguisticExtractor) Extract(ctx context.Context, text string) model.Extraction {
	canonical := reference.Canonical(text)

	found := e.catalog.matchTokens(tokenize(canonical))
	found = append(found, e.catalog.scanSubstrings(canonical)...)

	entities := map[string]string{}
	if e.recognizer != nil && canonical != "" {
		ents, err := e.recognizer.Recognize(ctx, text)
		if err != nil {
			log.Warnw("entity recognition failed", "recognizer", e.recognizer.Name(), "error", err)
		} else {
			for label, value := range ents {
				entities[label] = value
			}
		}
	}

	return model.Extraction{Symptoms: dedupe(found), Entities: entities}
}

// Select picks the extractor used for the lifetime of the process. A nil
// recognizer, or one whose service is unreachable, selects substring-only
// matching.
func Select(ctx context.Context, catalog *Catalog, recognizer EntityRecognizer) Extractor {
	if recognizer == nil {
		log.Infow("symptom extractor selected", "engine", "substring", "phrases", catalog.Len())
		return NewSubstringExtractor(catalog)
	}
	if checker, ok := recognizer.(availabilityChecker); ok && !checker.IsAvailable(ctx) {
		log.Warnw("entity recognizer unavailable, falling back to substring matching", "recognizer", recognizer.Name())
		return NewSubstringExtractor(catalog)
	}

	e := NewLinguisticExtractor(catalog, recognizer)
	log.Infow("symptom extractor selected", "engine", e.Name(), "phrases", catalog.Len())
	return e
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
