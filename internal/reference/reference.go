// Package reference loads the static lookup tables behind the diagnosis
// pipeline: symptom severity weights, disease descriptions, disease
// precautions and the labeled training examples.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxPrecautions is the number of precaution slots per disease
const MaxPrecautions = 4

// Canonical returns the matching form of a symptom: lowercase, trimmed,
// underscores as spaces, single internal spaces.
func Canonical(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// DiseaseKey returns the case-insensitive key used for disease joins
func DiseaseKey(disease string) string {
	return strings.ToLower(strings.TrimSpace(disease))
}

// SeverityTable maps canonical symptoms to non-negative weights
type SeverityTable map[string]int

// Weight returns the weight of a symptom, 0 when unknown
func (t SeverityTable) Weight(symptom string) int {
	return t[Canonical(symptom)]
}

// Symptoms returns the sorted unique canonical symptoms
func (t SeverityTable) Symptoms() []string {
	out := make([]string, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// DescriptionTable maps disease keys to description text
type DescriptionTable map[string]string

// PrecautionTable maps disease keys to ordered precautions
type PrecautionTable map[string][]string

// Example is one labeled training row
type Example struct {
	Disease  string
	Symptoms []string // Canonical, blank slots removed
}

// LoadSeverity reads a Symptom,weight table. Rows with unparseable or
// negative weights are skipped; on duplicates the last row wins.
func LoadSeverity(path string) (SeverityTable, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	symCol := findColumn(header, "symptom")
	weightCol := findColumn(header, "weight")
	if symCol < 0 || weightCol < 0 {
		return nil, fmt.Errorf("%s: missing Symptom/weight columns", filepath.Base(path))
	}

	table := make(SeverityTable, len(rows))
	for _, row := range rows {
		symptom := Canonical(cell(row, symCol))
		if symptom == "" {
			continue
		}
		weight, err := strconv.Atoi(cell(row, weightCol))
		if err != nil || weight < 0 {
			continue
		}
		table[symptom] = weight
	}
	return table, nil
}

// LoadDescriptions reads a Disease,Description table
func LoadDescriptions(path string) (DescriptionTable, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	diseaseCol := findColumn(header, "disease")
	descCol := findColumn(header, "description")
	if diseaseCol < 0 || descCol < 0 {
		return nil, fmt.Errorf("%s: missing Disease/Description columns", filepath.Base(path))
	}

	table := make(DescriptionTable, len(rows))
	for _, row := range rows {
		key := DiseaseKey(cell(row, diseaseCol))
		if key == "" {
			continue
		}
		// first row per disease wins
		if _, ok := table[key]; !ok {
			table[key] = cell(row, descCol)
		}
	}
	return table, nil
}

// LoadPrecautions reads a Disease,Precaution_1..Precaution_4 table.
// Blank slots are skipped; column order is preserved.
func LoadPrecautions(path string) (PrecautionTable, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	diseaseCol := findColumn(header, "disease")
	if diseaseCol < 0 {
		return nil, fmt.Errorf("%s: missing Disease column", filepath.Base(path))
	}
	var slots []int
	for i := 1; i <= MaxPrecautions; i++ {
		if col := findColumn(header, fmt.Sprintf("precaution_%d", i)); col >= 0 {
			slots = append(slots, col)
		}
	}

	table := make(PrecautionTable, len(rows))
	for _, row := range rows {
		key := DiseaseKey(cell(row, diseaseCol))
		if key == "" {
			continue
		}
		if _, ok := table[key]; ok {
			continue
		}
		precautions := make([]string, 0, len(slots))
		for _, col := range slots {
			if p := cell(row, col); p != "" {
				precautions = append(precautions, p)
			}
		}
		table[key] = precautions
	}
	return table, nil
}

// LoadExamples reads a Disease,Symptom_1..Symptom_N training table
func LoadExamples(path string) ([]Example, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	diseaseCol := findColumn(header, "disease")
	if diseaseCol < 0 {
		return nil, fmt.Errorf("%s: missing Disease column", filepath.Base(path))
	}
	var symptomCols []int
	for i, name := range header {
		if strings.HasPrefix(strings.ToLower(name), "symptom") {
			symptomCols = append(symptomCols, i)
		}
	}

	examples := make([]Example, 0, len(rows))
	for _, row := range rows {
		disease := strings.TrimSpace(cell(row, diseaseCol))
		if disease == "" {
			continue
		}
		ex := Example{Disease: disease}
		for _, col := range symptomCols {
			if s := Canonical(cell(row, col)); s != "" {
				ex.Symptoms = append(ex.Symptoms, s)
			}
		}
		examples = append(examples, ex)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("%s: no training examples", filepath.Base(path))
	}
	return examples, nil
}

// IsMissing reports whether err means the table file does not exist
func IsMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", filepath.Base(path))
	}

	header := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		header[i] = cleanCell(c)
	}
	return header, rows[1:], nil
}

func findColumn(header []string, name string) int {
	for i, col := range header {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return cleanCell(row[idx])
}

func cleanCell(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}
