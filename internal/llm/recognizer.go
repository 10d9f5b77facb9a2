package llm

import (
	"context"
	"time"

	"github.com/ppiankov/symptra/internal/cache"
	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/worker"
)

// Recognizer adapts a Provider to entity recognition with result caching
// and a per-provider request rate limit.
type Recognizer struct {
	provider Provider
	model    string
	cache    cache.Cache
	ttl      time.Duration
	limiter  *worker.Limiter
}

// NewRecognizer wraps provider. c and limiter may be nil.
func NewRecognizer(provider Provider, model string, c cache.Cache, ttl time.Duration, limiter *worker.Limiter) *Recognizer {
	if c == nil {
		c = cache.NopCache{}
	}
	if limiter == nil {
		limiter = worker.NewLimiter(0, 1)
	}
	return &Recognizer{
		provider: provider,
		model:    model,
		cache:    c,
		ttl:      ttl,
		limiter:  limiter,
	}
}

// Name returns the recognizer name
func (r *Recognizer) Name() string {
	return "llm:" + r.provider.Name()
}

// IsAvailable reports whether the provider can be reached
func (r *Recognizer) IsAvailable(ctx context.Context) bool {
	return r.provider.IsAvailable(ctx)
}

// Recognize returns cached entities for text or asks the provider
func (r *Recognizer) Recognize(ctx context.Context, text string) (map[string]string, error) {
	key := cache.Key("entities", r.provider.Name(), r.model, text)

	var entities map[string]string
	if cache.GetJSON(r.cache, key, &entities) {
		log.Debugw("entity cache hit", "provider", r.provider.Name())
		return entities, nil
	}

	if err := r.limiter.Wait(ctx, r.provider.Name()); err != nil {
		return nil, err
	}

	entities, err := r.provider.ExtractEntities(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(r.cache, key, entities, r.ttl); err != nil {
		log.Warnw("failed to cache entities", "error", err)
	}
	return entities, nil
}
