// Package validate checks the reference tables for gaps that silently
// degrade predictions, such as training symptoms without a severity weight.
package validate

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/symptra/internal/model"
	"github.com/ppiankov/symptra/internal/reference"
)

// Severity ranks an issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue kinds
const (
	KindMissingFile        = "missing_file"
	KindUnreadableFile     = "unreadable_file"
	KindUnweightedSymptom  = "unweighted_symptom"
	KindZeroWeight         = "zero_weight"
	KindMissingDescription = "missing_description"
	KindMissingPrecautions = "missing_precautions"
	KindOrphanDisease      = "orphan_disease"
	KindSparseClass        = "sparse_class"
)

// Issue is one finding about the reference data
type Issue struct {
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	Subject  string   `json:"subject"`
	Detail   string   `json:"detail,omitempty"`
}

// Report summarizes a validation run
type Report struct {
	Examples int     `json:"examples"`
	Diseases int     `json:"diseases"`
	Features int     `json:"features"`
	Issues   []Issue `json:"issues"`
}

// HasErrors reports whether any issue has error severity
func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of issues with the given severity
func (r *Report) Count(severity Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// Validator cross-checks the four reference tables
type Validator struct {
	data model.DataConfig
}

// NewValidator creates a validator for the tables described by data
func NewValidator(data model.DataConfig) *Validator {
	return &Validator{data: data}
}

type tables struct {
	examples     []reference.Example
	severity     reference.SeverityTable
	descriptions reference.DescriptionTable
	precautions  reference.PrecautionTable
}

// Validate loads every table and returns the findings. Unreadable tables
// become error issues; the returned error is only set when ctx is done.
func (v *Validator) Validate(ctx context.Context) (*Report, error) {
	report := &Report{Issues: []Issue{}}
	var t tables

	var loadIssues [4]*Issue
	g, gctx := errgroup.WithContext(ctx)
	load := func(i int, path string, fn func(string) error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(path); err != nil {
				loadIssues[i] = fileIssue(path, err)
			}
			return nil
		})
	}

	load(0, v.data.DatasetPath(), func(p string) (err error) {
		t.examples, err = reference.LoadExamples(p)
		return err
	})
	load(1, v.data.SeverityPath(), func(p string) (err error) {
		t.severity, err = reference.LoadSeverity(p)
		return err
	})
	load(2, v.data.DescriptionPath(), func(p string) (err error) {
		t.descriptions, err = reference.LoadDescriptions(p)
		return err
	})
	load(3, v.data.PrecautionPath(), func(p string) (err error) {
		t.precautions, err = reference.LoadPrecautions(p)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, issue := range loadIssues {
		if issue != nil {
			report.Issues = append(report.Issues, *issue)
		}
	}

	report.Features = len(t.severity)
	report.Issues = append(report.Issues, checkSeverity(t)...)
	if t.examples != nil {
		diseases := countDiseases(t.examples)
		report.Examples = len(t.examples)
		report.Diseases = len(diseases)
		report.Issues = append(report.Issues, checkExamples(t, diseases)...)
		report.Issues = append(report.Issues, checkKnowledge(t, diseases)...)
	}

	sortIssues(report.Issues)
	return report, nil
}

func fileIssue(path string, err error) *Issue {
	if reference.IsMissing(err) {
		return &Issue{Severity: SeverityError, Kind: KindMissingFile, Subject: path}
	}
	return &Issue{Severity: SeverityError, Kind: KindUnreadableFile, Subject: path, Detail: err.Error()}
}

// countDiseases maps each disease label to its number of examples
func countDiseases(examples []reference.Example) map[string]int {
	counts := make(map[string]int)
	for _, ex := range examples {
		counts[ex.Disease]++
	}
	return counts
}

func checkSeverity(t tables) []Issue {
	var issues []Issue
	for _, symptom := range t.severity.Symptoms() {
		if t.severity[symptom] == 0 {
			issues = append(issues, Issue{
				Severity: SeverityInfo,
				Kind:     KindZeroWeight,
				Subject:  symptom,
				Detail:   "contributes nothing to the risk score",
			})
		}
	}
	return issues
}

func checkExamples(t tables, diseases map[string]int) []Issue {
	var issues []Issue

	// Symptoms outside the severity table never become features
	if t.severity != nil {
		unweighted := make(map[string]int)
		for _, ex := range t.examples {
			for _, s := range ex.Symptoms {
				if _, ok := t.severity[s]; !ok {
					unweighted[s]++
				}
			}
		}
		for symptom, n := range unweighted {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Kind:     KindUnweightedSymptom,
				Subject:  symptom,
				Detail:   fmt.Sprintf("used in %d examples but absent from the severity table", n),
			})
		}
	}

	for disease, n := range diseases {
		if n < 2 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Kind:     KindSparseClass,
				Subject:  disease,
				Detail:   "only one training example",
			})
		}
	}
	return issues
}

func checkKnowledge(t tables, diseases map[string]int) []Issue {
	var issues []Issue
	known := make(map[string]struct{}, len(diseases))

	for disease := range diseases {
		key := reference.DiseaseKey(disease)
		known[key] = struct{}{}

		if t.descriptions != nil && t.descriptions[key] == "" {
			issues = append(issues, Issue{Severity: SeverityWarning, Kind: KindMissingDescription, Subject: disease})
		}
		if t.precautions != nil && len(t.precautions[key]) == 0 {
			issues = append(issues, Issue{Severity: SeverityWarning, Kind: KindMissingPrecautions, Subject: disease})
		}
	}

	orphans := make(map[string]struct{})
	for key := range t.descriptions {
		if _, ok := known[key]; !ok {
			orphans[key] = struct{}{}
		}
	}
	for key := range t.precautions {
		if _, ok := known[key]; !ok {
			orphans[key] = struct{}{}
		}
	}
	for key := range orphans {
		issues = append(issues, Issue{
			Severity: SeverityInfo,
			Kind:     KindOrphanDisease,
			Subject:  key,
			Detail:   "has knowledge rows but no training examples",
		})
	}
	return issues
}

var severityRank = map[Severity]int{SeverityError: 0, SeverityWarning: 1, SeverityInfo: 2}

func sortIssues(issues []Issue) {
	sort.Slice(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Severity != b.Severity {
			return severityRank[a.Severity] < severityRank[b.Severity]
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Subject < b.Subject
	})
}
