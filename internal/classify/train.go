package classify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/reference"
)

// ErrTrainingDataMissing means the dataset or severity table could not be read
var ErrTrainingDataMissing = errors.New("training data missing")

// Options controls training
type Options struct {
	Trees        int
	Seed         int64
	TestFraction float64
	Workers      int
}

// Trainer builds bundles from the reference CSV files
type Trainer struct {
	DatasetPath  string
	SeverityPath string
	Options      Options
}

// Train loads the dataset and severity table and fits a new bundle.
// Unreadable inputs are reported as ErrTrainingDataMissing.
func (t *Trainer) Train(ctx context.Context) (*Bundle, error) {
	examples, err := reference.LoadExamples(t.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrainingDataMissing, err)
	}
	severity, err := reference.LoadSeverity(t.SeverityPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrainingDataMissing, err)
	}
	return Fit(ctx, examples, severity, t.Options)
}

// Fit builds the vocabulary from the severity table, vectorizes every
// example against it, holds out TestFraction of the rows and fits the forest
// on the rest. Dataset symptoms missing from the severity table never become
// features.
func Fit(ctx context.Context, examples []reference.Example, severity reference.SeverityTable, opts Options) (*Bundle, error) {
	vocab := NewVocabulary(severity.Symptoms())
	if len(vocab) == 0 {
		return nil, fmt.Errorf("%w: severity table has no symptoms", ErrTrainingDataMissing)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("%w: no training examples", ErrTrainingDataMissing)
	}

	classes := classLabels(examples)
	classIndex := make(map[string]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}

	x := make([][]uint8, len(examples))
	y := make([]int, len(examples))
	for i, ex := range examples {
		x[i] = vocab.Vectorize(ex.Symptoms)
		y[i] = classIndex[ex.Disease]
	}

	trainIdx, testIdx := split(len(examples), opts.TestFraction, opts.Seed)
	xTrain, yTrain := subset(x, y, trainIdx)

	start := time.Now()
	forest, err := FitForest(ctx, xTrain, yTrain, classes, ForestOptions{
		Trees:   opts.Trees,
		Seed:    opts.Seed,
		Workers: opts.Workers,
	})
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Format:     BundleFormat,
		Vocabulary: vocab,
		Forest:     forest,
		Meta: Metadata{
			Version:     version(vocab, classes, opts.Seed, len(forest.Trees)),
			TrainedAt:   time.Now().UTC(),
			Seed:        opts.Seed,
			Trees:       len(forest.Trees),
			TrainSize:   len(trainIdx),
			HoldoutSize: len(testIdx),
		},
	}

	if len(testIdx) > 0 {
		correct := 0
		for _, i := range testIdx {
			if argmax(forest.Proba(x[i])) == y[i] {
				correct++
			}
		}
		bundle.Meta.Accuracy = round(float64(correct)/float64(len(testIdx)), 3)
	}

	log.Infow("model trained",
		"version", bundle.Meta.Version,
		"classes", len(classes),
		"features", len(vocab),
		"trees", bundle.Meta.Trees,
		"train_rows", bundle.Meta.TrainSize,
		"holdout_rows", bundle.Meta.HoldoutSize,
		"accuracy", bundle.Meta.Accuracy,
		"duration", time.Since(start).String(),
	)

	return bundle, nil
}

// split shuffles row indices with a fixed seed and holds out
// ceil(n*fraction) rows, always leaving at least one for training.
func split(n int, fraction float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewPCG(uint64(seed), math.MaxUint32)).Perm(n)
	if fraction <= 0 {
		return perm, nil
	}
	nTest := int(math.Ceil(float64(n)*fraction - 1e-9))
	if nTest > n-1 {
		nTest = n - 1
	}
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test
}

func subset(x [][]uint8, y []int, idx []int) ([][]uint8, []int) {
	xs := make([][]uint8, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}
	return xs, ys
}

func classLabels(examples []reference.Example) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ex := range examples {
		if _, ok := seen[ex.Disease]; !ok {
			seen[ex.Disease] = struct{}{}
			out = append(out, ex.Disease)
		}
	}
	sort.Strings(out)
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
