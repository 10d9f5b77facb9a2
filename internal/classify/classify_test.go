package classify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/ppiankov/symptra/internal/reference"
)

func testSeverity() reference.SeverityTable {
	return reference.SeverityTable{
		"itching":              1,
		"skin rash":            3,
		"nodal skin eruptions": 4,
		"continuous sneezing":  4,
		"shivering":            5,
		"chills":               3,
		"watering from eyes":   4,
		"stomach pain":         5,
		"acidity":              3,
		"vomiting":             5,
		"cough":                4,
		"high fever":           7,
		"breathlessness":       4,
	}
}

func testExamples() []reference.Example {
	base := []reference.Example{
		{Disease: "Fungal infection", Symptoms: []string{"itching", "skin rash", "nodal skin eruptions"}},
		{Disease: "Fungal infection", Symptoms: []string{"itching", "skin rash"}},
		{Disease: "Fungal infection", Symptoms: []string{"skin rash", "nodal skin eruptions", "dischromic patches"}},
		{Disease: "Allergy", Symptoms: []string{"continuous sneezing", "shivering", "chills", "watering from eyes"}},
		{Disease: "Allergy", Symptoms: []string{"continuous sneezing", "chills", "watering from eyes"}},
		{Disease: "Allergy", Symptoms: []string{"continuous sneezing", "shivering", "watering from eyes"}},
		{Disease: "GERD", Symptoms: []string{"stomach pain", "acidity", "vomiting", "cough"}},
		{Disease: "GERD", Symptoms: []string{"stomach pain", "acidity", "vomiting"}},
		{Disease: "GERD", Symptoms: []string{"acidity", "vomiting", "cough"}},
		{Disease: "Bronchial Asthma", Symptoms: []string{"high fever", "cough", "breathlessness"}},
		{Disease: "Bronchial Asthma", Symptoms: []string{"cough", "breathlessness"}},
		{Disease: "Bronchial Asthma", Symptoms: []string{"high fever", "breathlessness"}},
	}
	// repeat so the holdout split leaves every class represented
	var out []reference.Example
	for i := 0; i < 5; i++ {
		out = append(out, base...)
	}
	return out
}

func testOptions() Options {
	return Options{Trees: 25, Seed: 42, TestFraction: 0.2, Workers: 4}
}

func fitTestBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := Fit(context.Background(), testExamples(), testSeverity(), testOptions())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return b
}

func TestVocabulary_SortedUnique(t *testing.T) {
	v := NewVocabulary([]string{"skin_rash", "Itching", "itching ", "", "acidity"})
	want := Vocabulary{"acidity", "itching", "skin rash"}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("NewVocabulary = %v, want %v", v, want)
	}
	if !v.Contains("Skin_Rash") {
		t.Error("expected Contains to match canonical form")
	}
	if v.Contains("cough") {
		t.Error("expected cough not to be in vocabulary")
	}
}

func TestVocabulary_Vectorize(t *testing.T) {
	v := NewVocabulary(testSeverity().Symptoms())

	a := v.Vectorize([]string{"itching", "Skin Rash", "unknown symptom"})
	b := v.Vectorize([]string{"skin rash", "itching"})

	if len(a) != len(v) {
		t.Fatalf("expected vector length %d, got %d", len(v), len(a))
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected set-equal inputs to vectorize identically: %v vs %v", a, b)
	}

	ones := 0
	for _, x := range a {
		ones += int(x)
	}
	if ones != 2 {
		t.Errorf("expected 2 active features, got %d", ones)
	}

	empty := v.Vectorize(nil)
	if len(empty) != len(v) {
		t.Errorf("expected empty input to keep vector length, got %d", len(empty))
	}
}

func TestFit_VocabularyFromSeverityTable(t *testing.T) {
	b := fitTestBundle(t)

	want := NewVocabulary(testSeverity().Symptoms())
	if !reflect.DeepEqual(b.Vocabulary, want) {
		t.Errorf("vocabulary = %v, want %v", b.Vocabulary, want)
	}
	// dataset-only symptoms never become features
	if b.Vocabulary.Contains("dischromic patches") {
		t.Error("expected dataset-only symptom to be excluded from vocabulary")
	}
	if b.Meta.HoldoutSize != 12 {
		t.Errorf("expected 12 holdout rows (ceil 20%% of 60), got %d", b.Meta.HoldoutSize)
	}
	if b.Meta.TrainSize != 48 {
		t.Errorf("expected 48 train rows, got %d", b.Meta.TrainSize)
	}
	if b.Meta.Accuracy < 0.9 {
		t.Errorf("expected separable toy data to score >= 0.9 holdout accuracy, got %.3f", b.Meta.Accuracy)
	}
}

func TestFit_Deterministic(t *testing.T) {
	b1 := fitTestBundle(t)
	b2 := fitTestBundle(t)

	if !reflect.DeepEqual(b1.Vocabulary, b2.Vocabulary) {
		t.Error("expected identical vocabulary order across runs")
	}
	if !reflect.DeepEqual(b1.Forest, b2.Forest) {
		t.Error("expected identical forests for the same seed and data")
	}
	if b1.Meta.Version != b2.Meta.Version {
		t.Errorf("expected identical versions, got %s and %s", b1.Meta.Version, b2.Meta.Version)
	}

	eval := [][]string{
		{"itching", "skin rash"},
		{"acidity", "vomiting"},
		{},
		{"cough"},
	}
	for _, symptoms := range eval {
		if !reflect.DeepEqual(b1.Predict(symptoms), b2.Predict(symptoms)) {
			t.Errorf("predictions differ for %v", symptoms)
		}
	}
}

func TestFit_MissingData(t *testing.T) {
	_, err := Fit(context.Background(), testExamples(), reference.SeverityTable{}, testOptions())
	if !errors.Is(err, ErrTrainingDataMissing) {
		t.Errorf("expected ErrTrainingDataMissing for empty severity table, got %v", err)
	}

	_, err = Fit(context.Background(), nil, testSeverity(), testOptions())
	if !errors.Is(err, ErrTrainingDataMissing) {
		t.Errorf("expected ErrTrainingDataMissing for no examples, got %v", err)
	}
}

func TestPredict_RankingContract(t *testing.T) {
	b := fitTestBundle(t)

	inputs := [][]string{
		{"itching", "skin rash"},
		{"continuous sneezing", "chills"},
		{"stomach pain", "acidity", "vomiting"},
		{"high fever", "breathlessness"},
		{},
		{"not a symptom"},
	}
	for _, symptoms := range inputs {
		preds := b.Predict(symptoms)
		if len(preds) != TopK {
			t.Errorf("%v: expected %d predictions, got %d", symptoms, TopK, len(preds))
		}
		for i, p := range preds {
			if p.Probability < 0 || p.Probability > 1 {
				t.Errorf("%v: probability %f out of range", symptoms, p.Probability)
			}
			if i > 0 && p.Probability > preds[i-1].Probability {
				t.Errorf("%v: probabilities not non-increasing: %v", symptoms, preds)
			}
		}
	}

	top := b.Predict([]string{"itching", "skin rash", "nodal skin eruptions"})
	if top[0].Disease != "Fungal infection" {
		t.Errorf("expected Fungal infection ranked first, got %v", top)
	}
}

func TestPredict_FewerClassesThanTopK(t *testing.T) {
	examples := []reference.Example{
		{Disease: "A", Symptoms: []string{"itching"}},
		{Disease: "A", Symptoms: []string{"itching"}},
		{Disease: "B", Symptoms: []string{"cough"}},
		{Disease: "B", Symptoms: []string{"cough"}},
	}
	b, err := Fit(context.Background(), examples, testSeverity(), Options{Trees: 50, Seed: 1})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	preds := b.Predict([]string{"itching"})
	if len(preds) != 2 {
		t.Fatalf("expected all 2 classes, got %v", preds)
	}
	if preds[0].Disease != "A" {
		t.Errorf("expected A first, got %v", preds)
	}
}

func TestBundle_EncodeDecode(t *testing.T) {
	b := fitTestBundle(t)

	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := DecodeBundle(data)
	if err != nil {
		t.Fatalf("DecodeBundle failed: %v", err)
	}

	symptoms := []string{"cough", "breathlessness"}
	if !reflect.DeepEqual(b.Predict(symptoms), decoded.Predict(symptoms)) {
		t.Error("expected decoded bundle to predict identically")
	}
}

func TestDecodeBundle_Corrupt(t *testing.T) {
	cases := map[string]string{
		"garbage":       "not json",
		"wrong format":  `{"format": 99, "vocabulary": ["a"], "forest": {"classes": ["x"], "trees": [{"nodes": [{"f": -1}]}]}}`,
		"no vocabulary": `{"format": 1, "vocabulary": [], "forest": {"classes": ["x"], "trees": [{"nodes": [{"f": -1}]}]}}`,
		"bad feature":   `{"format": 1, "vocabulary": ["a"], "forest": {"classes": ["x"], "trees": [{"nodes": [{"f": 5, "a": 1, "p": 2}, {"f": -1}, {"f": -1}]}]}}`,
		"bad class":     `{"format": 1, "vocabulary": ["a"], "forest": {"classes": ["x"], "trees": [{"nodes": [{"f": -1, "c": [3], "q": [1]}]}]}}`,
	}
	for name, data := range cases {
		if _, err := DecodeBundle([]byte(data)); err == nil {
			t.Errorf("%s: expected decode error", name)
		}
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "model.json")
	store := NewFileStore(path)
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}

	if err := store.Save(ctx, []byte("one")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, []byte("two")); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	data, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("expected overwritten artifact, got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestHolder_TrainsOnceUnderConcurrency(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "model.json"))
	var calls int
	var mu sync.Mutex
	train := func(ctx context.Context) (*Bundle, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return Fit(ctx, testExamples(), testSeverity(), testOptions())
	}
	h := NewHolder(store, train)

	const callers = 16
	bundles := make([]*Bundle, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bundles[i], errs[i] = h.Get(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if bundles[i] != bundles[0] {
			t.Errorf("caller %d received a different bundle", i)
		}
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 training run, got %d", calls)
	}
	if h.TrainingRuns() != 1 {
		t.Errorf("expected TrainingRuns 1, got %d", h.TrainingRuns())
	}

	if _, err := store.Load(context.Background()); err != nil {
		t.Errorf("expected artifact to be persisted: %v", err)
	}
}

func TestHolder_LoadsPersistedArtifact(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "model.json"))
	b := fitTestBundle(t)
	data, _ := b.Encode()
	if err := store.Save(context.Background(), data); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	h := NewHolder(store, func(ctx context.Context) (*Bundle, error) {
		t.Error("train should not run when a valid artifact exists")
		return nil, errors.New("unexpected")
	})
	got, err := h.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Meta.Version != b.Meta.Version {
		t.Errorf("expected loaded version %s, got %s", b.Meta.Version, got.Meta.Version)
	}
}

func TestHolder_CorruptArtifactRetrains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0644); err != nil {
		t.Fatal(err)
	}
	h := NewHolder(NewFileStore(path), func(ctx context.Context) (*Bundle, error) {
		return Fit(ctx, testExamples(), testSeverity(), testOptions())
	})

	if _, err := h.Get(context.Background()); err != nil {
		t.Fatalf("expected corrupt artifact to trigger retraining, got %v", err)
	}
	if h.TrainingRuns() != 1 {
		t.Errorf("expected 1 training run, got %d", h.TrainingRuns())
	}

	data, _ := os.ReadFile(path)
	if _, err := DecodeBundle(data); err != nil {
		t.Errorf("expected corrupt artifact to be replaced: %v", err)
	}
}

func TestHolder_TrainingDataMissingIsFatal(t *testing.T) {
	dir := t.TempDir()
	trainer := &Trainer{
		DatasetPath:  filepath.Join(dir, "dataset.csv"),
		SeverityPath: filepath.Join(dir, "Symptom-severity.csv"),
		Options:      testOptions(),
	}
	h := NewHolder(NewFileStore(filepath.Join(dir, "model.json")), trainer.Train)

	_, err := h.Get(context.Background())
	if !errors.Is(err, ErrTrainingDataMissing) {
		t.Fatalf("expected ErrTrainingDataMissing, got %v", err)
	}
	if h.Current() != nil {
		t.Error("expected no bundle after failed training")
	}
}

func TestHolder_RetrainSwapsBundle(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "model.json"))
	h := NewHolder(store, func(ctx context.Context) (*Bundle, error) {
		return Fit(ctx, testExamples(), testSeverity(), testOptions())
	})
	ctx := context.Background()

	first, err := h.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := h.Retrain(ctx)
	if err != nil {
		t.Fatalf("Retrain failed: %v", err)
	}
	if first == second {
		t.Error("expected Retrain to produce a new bundle")
	}
	if h.Current() != second {
		t.Error("expected Retrain to swap the active bundle")
	}
	// the old bundle stays usable for requests that already hold it
	if len(first.Predict([]string{"cough"})) == 0 {
		t.Error("expected previous bundle to keep serving")
	}
}

func TestHolder_TrainingIgnoresCancellation(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "model.json"))
	h := NewHolder(store, func(ctx context.Context) (*Bundle, error) {
		return Fit(ctx, testExamples(), testSeverity(), testOptions())
	})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	first, err := h.Get(cancelled)
	if err != nil {
		t.Fatalf("expected cold start to finish despite cancellation, got %v", err)
	}
	again, err := h.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again != first {
		t.Error("expected the cold-start bundle to be kept")
	}
	if h.TrainingRuns() != 1 {
		t.Errorf("expected 1 training run, got %d", h.TrainingRuns())
	}

	retrained, err := h.Retrain(cancelled)
	if err != nil {
		t.Fatalf("expected Retrain to finish despite cancellation, got %v", err)
	}
	if h.Current() != retrained {
		t.Error("expected Retrain to swap the active bundle")
	}
	if h.TrainingRuns() != 2 {
		t.Errorf("expected 2 training runs after Retrain, got %d", h.TrainingRuns())
	}
	if _, err := store.Load(context.Background()); err != nil {
		t.Errorf("expected artifact to be persisted: %v", err)
	}
}
