// Package score turns an extracted symptom set into a bounded risk score.
package score

import (
	"math"

	"github.com/ppiankov/symptra/internal/model"
	"github.com/ppiankov/symptra/internal/reference"
)

const (
	// DefaultNormalizer is the aggregate severity treated as a full-scale score
	DefaultNormalizer = 17.0

	// DefaultMax is the upper bound of the score
	DefaultMax = 10.0
)

// RiskScorer sums severity weights and normalizes them to [0, Max]
type RiskScorer struct {
	table      reference.SeverityTable
	normalizer float64
	max        float64
}

// NewRiskScorer creates a scorer. Non-positive normalizer or max fall back to
// the defaults. A nil table makes every score 0.
func NewRiskScorer(table reference.SeverityTable, normalizer, max float64) *RiskScorer {
	if normalizer <= 0 {
		normalizer = DefaultNormalizer
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &RiskScorer{table: table, normalizer: normalizer, max: max}
}

// Score returns min(sum(weights)/normalizer, max) rounded to 2 decimals.
// Unknown symptoms weigh 0 and repeated symptoms count once.
func (s *RiskScorer) Score(symptoms []string) float64 {
	if s.table == nil {
		return 0
	}

	total := 0
	for _, c := range s.Breakdown(symptoms) {
		total += c.Weight
	}

	v := math.Min(float64(total)/s.normalizer, s.max)
	return math.Round(v*100) / 100
}

// Breakdown lists each distinct symptom with the weight it contributes
func (s *RiskScorer) Breakdown(symptoms []string) []model.RiskContribution {
	seen := make(map[string]struct{}, len(symptoms))
	out := make([]model.RiskContribution, 0, len(symptoms))

	for _, sym := range symptoms {
		key := reference.Canonical(sym)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		weight, known := s.table[key]
		out = append(out, model.RiskContribution{Symptom: key, Weight: weight, Known: known})
	}
	return out
}
