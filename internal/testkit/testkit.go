// Package testkit writes small reference data sets for tests that need the
// whole pipeline.
package testkit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/symptra/internal/model"
)

const datasetRows = `Disease,Symptom_1,Symptom_2,Symptom_3,Symptom_4
Fungal infection, itching, skin_rash, nodal_skin_eruptions,
Fungal infection, itching, skin_rash,,
Fungal infection, skin_rash, nodal_skin_eruptions, dischromic _patches,
Allergy, continuous_sneezing, shivering, chills, watering_from_eyes
Allergy, continuous_sneezing, chills, watering_from_eyes,
Allergy, continuous_sneezing, shivering, watering_from_eyes,
GERD, stomach_pain, acidity, vomiting, cough
GERD, stomach_pain, acidity, vomiting,
GERD, acidity, vomiting, cough,
Bronchial Asthma, high_fever, cough, breathlessness,
Bronchial Asthma, cough, breathlessness,,
Bronchial Asthma, high_fever, breathlessness,,
`

const severity = `Symptom,weight
itching,1
skin_rash,3
nodal_skin_eruptions,4
continuous_sneezing,4
shivering,5
chills,3
watering_from_eyes,4
stomach_pain,5
acidity,3
vomiting,5
cough,4
high_fever,7
breathlessness,4
`

const descriptions = `Disease,Description
Fungal infection,"In humans, fungal infections occur when an invading fungus takes over an area of the body."
Allergy,An allergy is an immune system response to a foreign substance that's not typically harmful to your body.
GERD,"Gastroesophageal reflux disease, or GERD, is a digestive disorder that affects the lower esophageal sphincter."
`

const precautions = `Disease,Precaution_1,Precaution_2,Precaution_3,Precaution_4
Fungal infection,bath twice,use detol or neem in bathing water,keep infected area dry,use clean cloths
Allergy,apply calamine,cover area with bandage,,use ice to compress itching
GERD,avoid fatty spicy food,avoid lying down after eating,maintain healthy weight,exercise
`

// WriteReferenceData writes the four reference CSV files into dir. The
// dataset repeats its rows so a 20% holdout keeps every class represented.
// Bronchial Asthma has no description or precaution row.
func WriteReferenceData(t testing.TB, dir string) {
	t.Helper()

	lines := strings.SplitAfterN(datasetRows, "\n", 2)
	dataset := lines[0] + strings.Repeat(lines[1], 5)

	cfg := model.DefaultConfig().Data
	files := map[string]string{
		cfg.DatasetFile:     dataset,
		cfg.SeverityFile:    severity,
		cfg.DescriptionFile: descriptions,
		cfg.PrecautionFile:  precautions,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

// Config returns a configuration reading reference data from a fresh temp
// dir, storing the model there and keeping caches in memory.
func Config(t testing.TB) *model.Config {
	t.Helper()

	dir := t.TempDir()
	WriteReferenceData(t, dir)

	cfg := model.DefaultConfig()
	cfg.Data.Dir = dir
	cfg.Model.ArtifactPath = filepath.Join(dir, "model.json")
	cfg.Model.Trees = 30
	cfg.Cache.Dir = ""
	cfg.Concurrency.Workers = 4
	return cfg
}
