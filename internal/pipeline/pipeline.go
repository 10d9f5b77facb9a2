// Package pipeline composes extraction, classification, risk scoring and
// knowledge lookup into one diagnosis per input text.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/symptra/internal/cache"
	"github.com/ppiankov/symptra/internal/classify"
	"github.com/ppiankov/symptra/internal/extract"
	"github.com/ppiankov/symptra/internal/knowledge"
	"github.com/ppiankov/symptra/internal/llm"
	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/model"
	"github.com/ppiankov/symptra/internal/reference"
	"github.com/ppiankov/symptra/internal/score"
	"github.com/ppiankov/symptra/internal/worker"
)

// availabilityTimeout bounds the startup probe of a remote entity recognizer
const availabilityTimeout = 10 * time.Second

// Pipeline owns everything a diagnosis needs. It is built once by New and
// is safe for concurrent use.
type Pipeline struct {
	holder     *classify.Holder
	severity   atomic.Pointer[severityView]
	recognizer extract.EntityRecognizer
	lookup     *knowledge.Lookup
	renderer   *Renderer
	config     *model.Config
}

// severityView is the state derived from the severity table. It is
// replaced as a whole when Retrain reads a new table.
type severityView struct {
	extractor extract.Extractor
	scorer    *score.RiskScorer
}

// Option customizes New
type Option func(*options)

type options struct {
	store      classify.Store
	recognizer extract.EntityRecognizer
	override   bool
}

// WithStore replaces the artifact store named in the configuration
func WithStore(s classify.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRecognizer replaces the configured entity recognizer. nil selects
// substring-only extraction.
func WithRecognizer(r extract.EntityRecognizer) Option {
	return func(o *options) {
		o.recognizer = r
		o.override = true
	}
}

// New loads the reference tables, selects the extractor and loads or trains
// the model bundle. When it returns, the pipeline can answer requests
// without further setup.
func New(ctx context.Context, cfg *model.Config, opts ...Option) (*Pipeline, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	severity := loadSeverity(cfg.Data.SeverityPath())
	descriptions, precautions := loadKnowledge(cfg.Data)

	store := o.store
	if store == nil {
		s, err := classify.NewStore(cfg.Model)
		if err != nil {
			return nil, err
		}
		store = s
	}

	trainer := NewTrainer(cfg)
	holder := classify.NewHolder(store, trainer.Train)

	recognizer := o.recognizer
	if !o.override {
		recognizer = newRecognizer(cfg)
	}
	probeCtx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	extractor := extract.Select(probeCtx, extract.NewCatalog(severity.Symptoms()...), recognizer)
	cancel()

	p := &Pipeline{
		holder:   holder,
		lookup:   knowledge.NewLookup(descriptions, precautions),
		renderer: NewRenderer(),
		config:   cfg,
	}
	// later catalogs keep the engine Select settled on
	if le, ok := extractor.(*extract.LinguisticExtractor); ok {
		p.recognizer = le.Recognizer()
	}
	p.severity.Store(&severityView{
		extractor: extractor,
		scorer:    score.NewRiskScorer(severity, cfg.Risk.Normalizer, cfg.Risk.Max),
	})

	bundle, err := holder.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap model: %w", err)
	}
	log.Infow("pipeline ready",
		"extractor", extractor.Name(),
		"model_version", bundle.Meta.Version,
		"classes", len(bundle.Forest.Classes),
		"features", len(bundle.Vocabulary),
	)

	return p, nil
}

// NewTrainer builds the trainer described by cfg
func NewTrainer(cfg *model.Config) *classify.Trainer {
	return &classify.Trainer{
		DatasetPath:  cfg.Data.DatasetPath(),
		SeverityPath: cfg.Data.SeverityPath(),
		Options: classify.Options{
			Trees:        cfg.Model.Trees,
			Seed:         cfg.Model.Seed,
			TestFraction: cfg.Model.TestFraction,
			Workers:      cfg.Concurrency.Workers,
		},
	}
}

// Diagnose runs the full pipeline for one text. The only error is failing
// to obtain a model bundle; every lookup miss degrades to a default.
func (p *Pipeline) Diagnose(ctx context.Context, text string) (*model.Response, error) {
	bundle, err := p.holder.Get(ctx)
	if err != nil {
		return nil, err
	}

	view := p.severity.Load()
	extracted := view.extractor.Extract(ctx, text)
	predictions := bundle.Predict(extracted.Symptoms)
	risk := view.scorer.Score(extracted.Symptoms)

	details := model.Details{Description: model.NoPrediction, Precautions: []string{}}
	if len(predictions) > 0 {
		details = p.lookup.Details(predictions[0].Disease)
	}

	resp := &model.Response{
		RequestID:       uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		InputText:       text,
		Extracted:       extracted,
		Predictions:     predictions,
		Details:         details,
		RiskScore:       risk,
		Recommendations: details.Description,
		ModelVersion:    bundle.Meta.Version,
	}

	log.Debugw("diagnosis complete",
		"request_id", resp.RequestID,
		"symptoms", len(extracted.Symptoms),
		"top", resp.TopDisease(),
		"risk", risk,
	)
	return resp, nil
}

// Retrain rebuilds and persists the bundle, then swaps it in for later
// requests. The symptom catalog and risk scorer are rebuilt from the same
// severity table so new vocabulary symptoms are extractable and weighted.
func (p *Pipeline) Retrain(ctx context.Context) (*classify.Bundle, error) {
	bundle, err := p.holder.Retrain(ctx)
	if err != nil {
		return nil, err
	}

	if severity := loadSeverity(p.config.Data.SeverityPath()); severity != nil {
		p.severity.Store(p.newSeverityView(severity))
		log.Infow("severity table reloaded", "symptoms", len(severity), "model_version", bundle.Meta.Version)
	}
	return bundle, nil
}

func (p *Pipeline) newSeverityView(severity reference.SeverityTable) *severityView {
	catalog := extract.NewCatalog(severity.Symptoms()...)

	var extractor extract.Extractor = extract.NewSubstringExtractor(catalog)
	if p.recognizer != nil {
		extractor = extract.NewLinguisticExtractor(catalog, p.recognizer)
	}
	return &severityView{
		extractor: extractor,
		scorer:    score.NewRiskScorer(severity, p.config.Risk.Normalizer, p.config.Risk.Max),
	}
}

// Model returns the active bundle
func (p *Pipeline) Model() *classify.Bundle {
	return p.holder.Current()
}

// DiseaseDetails returns the knowledge for a disease and whether it is known
func (p *Pipeline) DiseaseDetails(name string) (model.Details, bool) {
	return p.lookup.Details(name), p.lookup.Known(name)
}

// Lookup returns the knowledge lookup
func (p *Pipeline) Lookup() *knowledge.Lookup {
	return p.lookup
}

// Scorer returns the current risk scorer
func (p *Pipeline) Scorer() *score.RiskScorer {
	return p.severity.Load().scorer
}

// Extractor returns the current extractor
func (p *Pipeline) Extractor() extract.Extractor {
	return p.severity.Load().extractor
}

// Renderer returns the output renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// loadSeverity returns nil when the table cannot be read, which makes every
// risk score 0.
func loadSeverity(path string) reference.SeverityTable {
	table, err := reference.LoadSeverity(path)
	if err != nil {
		log.Warnw("severity table unavailable, risk scores will be 0", "path", path, "error", err)
		return nil
	}
	return table
}

// LoadKnowledge reads the description and precaution tables. Unreadable
// tables are logged and replaced by empty ones.
func LoadKnowledge(data model.DataConfig) *knowledge.Lookup {
	descriptions, precautions := loadKnowledge(data)
	return knowledge.NewLookup(descriptions, precautions)
}

func loadKnowledge(data model.DataConfig) (reference.DescriptionTable, reference.PrecautionTable) {
	descriptions, err := reference.LoadDescriptions(data.DescriptionPath())
	if err != nil {
		log.Warnw("description table unavailable", "path", data.DescriptionPath(), "error", err)
		descriptions = reference.DescriptionTable{}
	}

	precautions, err := reference.LoadPrecautions(data.PrecautionPath())
	if err != nil {
		log.Warnw("precaution table unavailable", "path", data.PrecautionPath(), "error", err)
		precautions = reference.PrecautionTable{}
	}
	return descriptions, precautions
}

// newRecognizer builds the entity recognizer named by extract.engine. It
// returns nil for substring-only extraction.
func newRecognizer(cfg *model.Config) extract.EntityRecognizer {
	switch cfg.Extract.Engine {
	case "", "rules":
		return extract.NewRuleRecognizer()

	case "llm":
		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			log.Warnw("failed to initialize LLM provider, using substring matching", "error", err)
			return nil
		}
		if provider == nil {
			log.Warnw("extract.engine is llm but no llm.provider is set, using substring matching")
			return nil
		}
		limiter := worker.NewLimiter(cfg.LLM.RequestsPerSecond, cfg.LLM.BurstSize)
		return llm.NewRecognizer(provider, cfg.LLM.Model, cache.New(cfg.Cache), cfg.Cache.DiskTTL, limiter)

	case "none":
		return nil

	default:
		log.Warnw("unknown extract.engine, using substring matching", "engine", cfg.Extract.Engine)
		return nil
	}
}

// IsTrainingDataMissing reports whether err means the training inputs were absent
func IsTrainingDataMissing(err error) bool {
	return errors.Is(err, classify.ErrTrainingDataMissing)
}
