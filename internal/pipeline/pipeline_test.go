package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/symptra/internal/classify"
	"github.com/ppiankov/symptra/internal/model"
	"github.com/ppiankov/symptra/internal/testkit"
)

func newTestPipeline(t *testing.T, cfg *model.Config) *Pipeline {
	t.Helper()
	p, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestDiagnose_SkinRashAndItching(t *testing.T) {
	p := newTestPipeline(t, testkit.Config(t))

	resp, err := p.Diagnose(context.Background(), "I have a skin rash and itching")
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}

	if !reflect.DeepEqual(resp.Extracted.Symptoms, []string{"itching", "skin rash"}) {
		t.Errorf("Unexpected symptoms: %v", resp.Extracted.Symptoms)
	}
	// (1 + 3) / 17
	if resp.RiskScore != 0.24 {
		t.Errorf("Expected risk 0.24, got %.2f", resp.RiskScore)
	}
	if resp.TopDisease() != "Fungal infection" {
		t.Errorf("Expected Fungal infection on top, got %v", resp.Predictions)
	}
	if !strings.HasPrefix(resp.Details.Description, "In humans, fungal infections") {
		t.Errorf("Unexpected description: %q", resp.Details.Description)
	}
	if resp.Recommendations != resp.Details.Description {
		t.Error("Expected recommendations to carry the description")
	}
	if len(resp.Details.Precautions) != 4 {
		t.Errorf("Expected 4 precautions, got %v", resp.Details.Precautions)
	}
	if resp.RequestID == "" || resp.ModelVersion == "" {
		t.Errorf("Expected request id and model version, got %q %q", resp.RequestID, resp.ModelVersion)
	}
}

func TestDiagnose_EmptyInput(t *testing.T) {
	p := newTestPipeline(t, testkit.Config(t))

	resp, err := p.Diagnose(context.Background(), "")
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}

	if len(resp.Extracted.Symptoms) != 0 {
		t.Errorf("Expected no symptoms, got %v", resp.Extracted.Symptoms)
	}
	if resp.Extracted.Entities == nil || len(resp.Extracted.Entities) != 0 {
		t.Errorf("Expected empty entities, got %v", resp.Extracted.Entities)
	}
	if resp.RiskScore != 0 {
		t.Errorf("Expected risk 0, got %.2f", resp.RiskScore)
	}
	if len(resp.Predictions) == 0 || len(resp.Predictions) > 3 {
		t.Errorf("Expected 1-3 baseline predictions, got %v", resp.Predictions)
	}
	for i := 1; i < len(resp.Predictions); i++ {
		if resp.Predictions[i].Probability > resp.Predictions[i-1].Probability {
			t.Errorf("Predictions not ranked: %v", resp.Predictions)
		}
	}
}

func TestDiagnose_UnknownDiseaseDetails(t *testing.T) {
	p := newTestPipeline(t, testkit.Config(t))

	// Bronchial Asthma has no knowledge rows in the fixture
	resp, err := p.Diagnose(context.Background(), "cough, breathlessness and a high fever")
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if resp.TopDisease() != "Bronchial Asthma" {
		t.Fatalf("Expected Bronchial Asthma on top, got %v", resp.Predictions)
	}
	if resp.Details.Description != model.DescriptionUnavailable {
		t.Errorf("Expected placeholder description, got %q", resp.Details.Description)
	}
	if len(resp.Details.Precautions) != 0 {
		t.Errorf("Expected no precautions, got %v", resp.Details.Precautions)
	}
}

func TestDiagnose_EntitiesFromRules(t *testing.T) {
	p := newTestPipeline(t, testkit.Config(t))

	resp, err := p.Diagnose(context.Background(), "Vomiting and acidity for 3 days")
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if resp.Extracted.Entities["DURATION"] != "for 3 days" {
		t.Errorf("Expected DURATION entity, got %v", resp.Extracted.Entities)
	}
}

func TestNew_SubstringOnlyEngine(t *testing.T) {
	cfg := testkit.Config(t)
	cfg.Extract.Engine = "none"
	p := newTestPipeline(t, cfg)

	if p.Extractor().Name() != "substring" {
		t.Errorf("Expected substring extractor, got %s", p.Extractor().Name())
	}

	resp, _ := p.Diagnose(context.Background(), "Vomiting for 3 days")
	if len(resp.Extracted.Entities) != 0 {
		t.Errorf("Expected no entities without a recognizer, got %v", resp.Extracted.Entities)
	}
}

func TestNew_LLMEngineWithoutProviderFallsBack(t *testing.T) {
	cfg := testkit.Config(t)
	cfg.Extract.Engine = "llm"
	cfg.LLM.Provider = ""
	p := newTestPipeline(t, cfg)

	if p.Extractor().Name() != "substring" {
		t.Errorf("Expected substring fallback, got %s", p.Extractor().Name())
	}
}

func TestNew_MissingSeverityTable(t *testing.T) {
	cfg := testkit.Config(t)
	// training needs the severity table, so train first and then remove it
	newTestPipeline(t, cfg)
	if err := os.Remove(cfg.Data.SeverityPath()); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, cfg)
	resp, err := p.Diagnose(context.Background(), "itching and skin rash")
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if resp.RiskScore != 0 {
		t.Errorf("Expected risk 0 without severity table, got %.2f", resp.RiskScore)
	}
	if len(resp.Predictions) == 0 {
		t.Error("Expected predictions from the persisted model")
	}
}

func TestNew_MissingTrainingData(t *testing.T) {
	cfg := testkit.Config(t)
	if err := os.Remove(cfg.Data.DatasetPath()); err != nil {
		t.Fatal(err)
	}

	_, err := New(context.Background(), cfg)
	if err == nil {
		t.Fatal("Expected bootstrap to fail")
	}
	if !IsTrainingDataMissing(err) {
		t.Errorf("Expected ErrTrainingDataMissing, got %v", err)
	}
}

// countingStore wraps a store and counts saves
type countingStore struct {
	classify.Store
	mu    sync.Mutex
	saves int
}

func (s *countingStore) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.Store.Save(ctx, data)
}

func TestDiagnose_ConcurrentCallersShareBundle(t *testing.T) {
	cfg := testkit.Config(t)
	store := &countingStore{Store: classify.NewFileStore(cfg.Model.ArtifactPath)}
	p, err := New(context.Background(), cfg, WithStore(store))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*model.Response, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Diagnose(context.Background(), "stomach pain, acidity and vomiting")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if !reflect.DeepEqual(results[i].Predictions, results[0].Predictions) {
			t.Errorf("caller %d got %v, caller 0 got %v", i, results[i].Predictions, results[0].Predictions)
		}
		if results[i].ModelVersion != results[0].ModelVersion {
			t.Errorf("caller %d saw a different model version", i)
		}
	}
	if store.saves != 1 {
		t.Errorf("Expected exactly one training run to persist, got %d", store.saves)
	}
}

func TestRetrain_SwapsBundle(t *testing.T) {
	p := newTestPipeline(t, testkit.Config(t))
	before := p.Model()

	after, err := p.Retrain(context.Background())
	if err != nil {
		t.Fatalf("Retrain failed: %v", err)
	}
	if after == before {
		t.Error("Expected a new bundle instance")
	}
	if p.Model() != after {
		t.Error("Expected the retrained bundle to be active")
	}
	// same seed and data
	if !reflect.DeepEqual(after.Vocabulary, before.Vocabulary) || after.Meta.Version != before.Meta.Version {
		t.Error("Expected identical vocabulary and version after retraining with the same seed")
	}
}

func TestRetrain_PicksUpNewSeverityRows(t *testing.T) {
	cfg := testkit.Config(t)
	p := newTestPipeline(t, cfg)
	ctx := context.Background()

	before, _ := p.Diagnose(ctx, "I wake up with night sweats")
	if len(before.Extracted.Symptoms) != 0 || before.RiskScore != 0 {
		t.Fatalf("Expected unknown symptom before retrain, got %v (risk %.2f)", before.Extracted.Symptoms, before.RiskScore)
	}

	f, err := os.OpenFile(cfg.Data.SeverityPath(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("night_sweats,6\n"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	bundle, err := p.Retrain(ctx)
	if err != nil {
		t.Fatalf("Retrain failed: %v", err)
	}
	if !bundle.Vocabulary.Contains("night sweats") {
		t.Fatal("Expected the new symptom in the retrained vocabulary")
	}

	after, _ := p.Diagnose(ctx, "I wake up with night sweats")
	if !reflect.DeepEqual(after.Extracted.Symptoms, []string{"night sweats"}) {
		t.Errorf("Expected the new symptom to be extracted, got %v", after.Extracted.Symptoms)
	}
	// 6 / 17
	if after.RiskScore != 0.35 {
		t.Errorf("Expected risk 0.35, got %.2f", after.RiskScore)
	}
	if p.Extractor().Name() != "linguistic+rules" {
		t.Errorf("Expected the extraction engine to be kept, got %s", p.Extractor().Name())
	}
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context) ([]byte, error) { return nil, classify.ErrArtifactNotFound }

func (failingStore) Save(ctx context.Context, data []byte) error { return errors.New("disk full") }

func (failingStore) Location() string { return "failing" }

func TestNew_UnsavableArtifactStillServes(t *testing.T) {
	p, err := New(context.Background(), testkit.Config(t), WithStore(failingStore{}))
	if err != nil {
		t.Fatalf("Expected bootstrap to succeed with an in-memory bundle, got %v", err)
	}
	if _, err := p.Diagnose(context.Background(), "cough"); err != nil {
		t.Errorf("Diagnose failed: %v", err)
	}
	if _, err := p.Retrain(context.Background()); err == nil {
		t.Error("Expected Retrain to report the failed save")
	}
}

func TestRenderSummary(t *testing.T) {
	p := newTestPipeline(t, testkit.Config(t))
	resp, _ := p.Diagnose(context.Background(), "itching and skin rash since yesterday")

	var buf bytes.Buffer
	p.Renderer().RenderSummary(&buf, resp)
	out := buf.String()

	for _, want := range []string{"itching, skin rash", `DATE="yesterday"`, "Risk score:  0.24 / 10 (low)", "Fungal infection", "bath twice"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q:\n%s", want, out)
		}
	}
}

func TestRiskLevel(t *testing.T) {
	cases := map[float64]string{0: "low", 2.99: "low", 3: "moderate", 6.5: "moderate", 7: "high", 10: "high"}
	for score, want := range cases {
		if got := RiskLevel(score); got != want {
			t.Errorf("RiskLevel(%.2f) = %s, want %s", score, got, want)
		}
	}
}
