package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/symptra/internal/model"
)

// BundleFormat is the current artifact layout version
const BundleFormat = 1

// TopK is the number of ranked diseases returned by Predict
const TopK = 3

// Bundle pairs a trained forest with the exact vocabulary order used to
// build its training features. It is immutable once built.
type Bundle struct {
	Format     int        `json:"format"`
	Vocabulary Vocabulary `json:"vocabulary"`
	Forest     *Forest    `json:"forest"`
	Meta       Metadata   `json:"meta"`
}

// Metadata records how a bundle was produced
type Metadata struct {
	Version     string    `json:"version"`
	TrainedAt   time.Time `json:"trained_at"`
	Seed        int64     `json:"seed"`
	Trees       int       `json:"trees"`
	TrainSize   int       `json:"train_size"`
	HoldoutSize int       `json:"holdout_size"`
	Accuracy    float64   `json:"accuracy"` // Holdout accuracy, 0 when nothing was held out
}

// Encode serializes the bundle as one self-describing JSON document
func (b *Bundle) Encode() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return data, nil
}

// DecodeBundle parses and validates an artifact
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Format != BundleFormat {
		return nil, fmt.Errorf("decode bundle: unsupported format %d", b.Format)
	}
	if len(b.Vocabulary) == 0 {
		return nil, fmt.Errorf("decode bundle: empty vocabulary")
	}
	if !sort.StringsAreSorted(b.Vocabulary) {
		return nil, fmt.Errorf("decode bundle: vocabulary not in training order")
	}
	if b.Forest == nil {
		return nil, fmt.Errorf("decode bundle: missing forest")
	}
	if err := b.Forest.validate(len(b.Vocabulary)); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}

// Predict ranks diseases for a symptom set and returns at most TopK of them.
// Ties keep class order.
func (b *Bundle) Predict(symptoms []string) []model.Prediction {
	probs := b.Forest.Proba(b.Vocabulary.Vectorize(symptoms))

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return probs[order[i]] > probs[order[j]]
	})

	k := TopK
	if len(order) < k {
		k = len(order)
	}
	out := make([]model.Prediction, 0, k)
	for _, c := range order[:k] {
		out = append(out, model.Prediction{
			Disease:     b.Forest.Classes[c],
			Probability: round(probs[c], 3),
		})
	}
	return out
}

// version fingerprints what determines model behavior
func version(vocab Vocabulary, classes []string, seed int64, trees int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%d|", BundleFormat, seed, trees)
	h.Write([]byte(strings.Join(vocab, "\x00")))
	h.Write([]byte{0xff})
	h.Write([]byte(strings.Join(classes, "\x00")))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
