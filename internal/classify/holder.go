package classify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ppiankov/symptra/internal/log"
)

// TrainFunc produces a fresh bundle
type TrainFunc func(ctx context.Context) (*Bundle, error)

// Holder owns the active bundle. The first Get loads the persisted artifact
// or, when it is absent or unreadable, trains and persists a new one. Loading
// and training run under a single mutex, so concurrent first callers wait for
// one run and all receive its bundle. Reads after that are lock-free.
// Loading and training ignore caller cancellation: a run that has started
// always finishes, so a caller that gives up never forces a second run.
type Holder struct {
	store Store
	train TrainFunc

	mu      sync.Mutex
	current atomic.Pointer[Bundle]
	trained atomic.Int64
}

// NewHolder creates a holder over store, using train for cold starts
func NewHolder(store Store, train TrainFunc) *Holder {
	return &Holder{store: store, train: train}
}

// Get returns the active bundle, loading or training it on first use
func (h *Holder) Get(ctx context.Context) (*Bundle, error) {
	if b := h.current.Load(); b != nil {
		return b, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// another caller may have finished while we waited
	if b := h.current.Load(); b != nil {
		return b, nil
	}

	ctx = context.WithoutCancel(ctx)
	b, err := h.load(ctx)
	if err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			log.Infow("no model artifact, training", "location", h.store.Location())
		} else {
			log.Warnw("model artifact unreadable, retraining", "location", h.store.Location(), "error", err)
		}

		b, err = h.trainAndSave(ctx, false)
		if err != nil {
			return nil, err
		}
	}

	h.current.Store(b)
	return b, nil
}

// Retrain builds a new bundle, persists it and swaps it in. Callers that
// already hold the previous bundle keep using it until they ask again.
func (h *Holder) Retrain(ctx context.Context) (*Bundle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := h.trainAndSave(context.WithoutCancel(ctx), true)
	if err != nil {
		return nil, err
	}
	h.current.Store(b)
	return b, nil
}

// Current returns the active bundle without loading, or nil
func (h *Holder) Current() *Bundle {
	return h.current.Load()
}

// TrainingRuns reports how many times the holder has trained
func (h *Holder) TrainingRuns() int64 {
	return h.trained.Load()
}

func (h *Holder) load(ctx context.Context) (*Bundle, error) {
	data, err := h.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	b, err := DecodeBundle(data)
	if err != nil {
		return nil, err
	}
	log.Infow("model loaded", "location", h.store.Location(), "version", b.Meta.Version, "classes", len(b.Forest.Classes))
	return b, nil
}

// trainAndSave runs training and persists the result. A failed save only
// fails the call when strict is set; otherwise the bundle is still served.
func (h *Holder) trainAndSave(ctx context.Context, strict bool) (*Bundle, error) {
	h.trained.Add(1)
	b, err := h.train(ctx)
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	data, err := b.Encode()
	if err == nil {
		err = h.store.Save(ctx, data)
	}
	if err != nil {
		if strict {
			return nil, fmt.Errorf("persist model: %w", err)
		}
		log.Error("failed to persist model artifact, serving in-memory bundle", err)
		return b, nil
	}

	log.Infow("model saved", "location", h.store.Location(), "version", b.Meta.Version)
	return b, nil
}
