// Package knowledge resolves a disease name to its description and precautions.
package knowledge

import (
	"github.com/ppiankov/symptra/internal/model"
	"github.com/ppiankov/symptra/internal/reference"
)

// Lookup joins disease names against the description and precaution tables.
// Names match case-insensitively after trimming. The tables are never
// modified, so a Lookup is safe for concurrent use.
type Lookup struct {
	descriptions reference.DescriptionTable
	precautions  reference.PrecautionTable
}

// NewLookup creates a lookup over the given tables
func NewLookup(descriptions reference.DescriptionTable, precautions reference.PrecautionTable) *Lookup {
	return &Lookup{
		descriptions: descriptions,
		precautions:  precautions,
	}
}

// Details returns the description and up to four precautions for disease.
// Unknown diseases get model.DescriptionUnavailable and no precautions.
// The precaution slice is freshly allocated on every call.
func (l *Lookup) Details(disease string) model.Details {
	key := reference.DiseaseKey(disease)

	d := model.Details{
		Description: model.DescriptionUnavailable,
		Precautions: []string{},
	}
	if desc, ok := l.descriptions[key]; ok {
		d.Description = desc
	}
	for _, p := range l.precautions[key] {
		if len(d.Precautions) == reference.MaxPrecautions {
			break
		}
		if p != "" {
			d.Precautions = append(d.Precautions, p)
		}
	}
	return d
}

// Known reports whether disease has a description or precaution row
func (l *Lookup) Known(disease string) bool {
	key := reference.DiseaseKey(disease)
	_, hasDesc := l.descriptions[key]
	_, hasPrec := l.precautions[key]
	return hasDesc || hasPrec
}
