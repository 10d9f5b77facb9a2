package classify

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// Node is one decision tree node over binary features. Leaves have
// Feature == -1 and carry a sparse class distribution.
type Node struct {
	Feature int       `json:"f"`
	Absent  int       `json:"a,omitempty"` // child index when the feature is 0
	Present int       `json:"p,omitempty"` // child index when the feature is 1
	Classes []int     `json:"c,omitempty"`
	Probs   []float64 `json:"q,omitempty"`
}

// Tree is a flattened decision tree; Nodes[0] is the root
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a bagged ensemble of decision trees
type Forest struct {
	Classes []string `json:"classes"`
	Trees   []Tree   `json:"trees"`
}

// ForestOptions controls ensemble fitting
type ForestOptions struct {
	Trees   int
	Seed    int64
	Workers int
}

// FitForest fits a random forest: every tree sees a bootstrap sample and
// considers sqrt(features) random candidates per split. Tree i draws from
// its own generator seeded with (Seed, i), so the result does not depend on
// scheduling.
func FitForest(ctx context.Context, x [][]uint8, y []int, classes []string, opts ForestOptions) (*Forest, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("fit forest: no training rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("fit forest: %d rows but %d labels", len(x), len(y))
	}
	if opts.Trees <= 0 {
		opts.Trees = 1
	}

	forest := &Forest{
		Classes: classes,
		Trees:   make([]Tree, opts.Trees),
	}

	features := len(x[0])
	mtry := int(math.Sqrt(float64(features)))
	if mtry < 1 {
		mtry = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i := range forest.Trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(i)))
			sample := make([]int, len(x))
			for j := range sample {
				sample[j] = rng.IntN(len(x))
			}
			b := &treeBuilder{x: x, y: y, classes: len(classes), mtry: mtry, rng: rng}
			b.grow(sample)
			forest.Trees[i] = Tree{Nodes: b.nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	return forest, nil
}

// Proba returns the mean of the per-tree leaf distributions, indexed like Classes
func (f *Forest) Proba(vec []uint8) []float64 {
	probs := make([]float64, len(f.Classes))
	if len(f.Trees) == 0 {
		return probs
	}
	for _, t := range f.Trees {
		leaf := t.leaf(vec)
		for k, c := range leaf.Classes {
			probs[c] += leaf.Probs[k]
		}
	}
	for i := range probs {
		probs[i] /= float64(len(f.Trees))
	}
	return probs
}

func (t Tree) leaf(vec []uint8) Node {
	n := t.Nodes[0]
	for n.Feature >= 0 {
		if vec[n.Feature] == 1 {
			n = t.Nodes[n.Present]
		} else {
			n = t.Nodes[n.Absent]
		}
	}
	return n
}

// validate checks structural integrity against a feature width
func (f *Forest) validate(features int) error {
	if len(f.Classes) == 0 || len(f.Trees) == 0 {
		return fmt.Errorf("empty forest")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d: no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature >= 0 {
				if n.Feature >= features {
					return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
				}
				// children always come after their parent
				if n.Absent <= ni || n.Absent >= len(t.Nodes) || n.Present <= ni || n.Present >= len(t.Nodes) {
					return fmt.Errorf("tree %d node %d: bad child index", ti, ni)
				}
				continue
			}
			if len(n.Classes) != len(n.Probs) {
				return fmt.Errorf("tree %d node %d: malformed distribution", ti, ni)
			}
			for _, c := range n.Classes {
				if c < 0 || c >= len(f.Classes) {
					return fmt.Errorf("tree %d node %d: class %d out of range", ti, ni, c)
				}
			}
		}
	}
	return nil
}

type treeBuilder struct {
	x       [][]uint8
	y       []int
	classes int
	mtry    int
	rng     *rand.Rand
	nodes   []Node
}

// grow appends the subtree for sample and returns its root index
func (b *treeBuilder) grow(sample []int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	counts := b.count(sample)
	if isPure(counts) {
		b.nodes[idx] = b.leaf(counts, len(sample))
		return idx
	}

	feature := b.bestSplit(sample, counts)
	if feature < 0 {
		b.nodes[idx] = b.leaf(counts, len(sample))
		return idx
	}

	var absent, present []int
	for _, r := range sample {
		if b.x[r][feature] == 1 {
			present = append(present, r)
		} else {
			absent = append(absent, r)
		}
	}

	a := b.grow(absent)
	p := b.grow(present)
	b.nodes[idx] = Node{Feature: feature, Absent: a, Present: p}
	return idx
}

// bestSplit visits features in random order and evaluates the first mtry
// that actually separate the sample. Returns -1 when no feature does.
func (b *treeBuilder) bestSplit(sample []int, parent []int) int {
	best := -1
	bestImpurity := math.Inf(1)
	evaluated := 0

	withFeature := make([]int, b.classes)
	for _, f := range b.rng.Perm(len(b.x[0])) {
		if evaluated >= b.mtry {
			break
		}
		for c := range withFeature {
			withFeature[c] = 0
		}
		n1 := 0
		for _, r := range sample {
			if b.x[r][f] == 1 {
				withFeature[b.y[r]]++
				n1++
			}
		}
		if n1 == 0 || n1 == len(sample) {
			continue
		}
		evaluated++

		n0 := len(sample) - n1
		g0, g1 := 1.0, 1.0
		for c := range withFeature {
			p1 := float64(withFeature[c]) / float64(n1)
			p0 := float64(parent[c]-withFeature[c]) / float64(n0)
			g1 -= p1 * p1
			g0 -= p0 * p0
		}
		impurity := (float64(n0)*g0 + float64(n1)*g1) / float64(len(sample))
		if impurity < bestImpurity {
			bestImpurity = impurity
			best = f
		}
	}
	return best
}

func (b *treeBuilder) count(sample []int) []int {
	counts := make([]int, b.classes)
	for _, r := range sample {
		counts[b.y[r]]++
	}
	return counts
}

func (b *treeBuilder) leaf(counts []int, total int) Node {
	n := Node{Feature: -1}
	for c, k := range counts {
		if k > 0 {
			n.Classes = append(n.Classes, c)
			n.Probs = append(n.Probs, float64(k)/float64(total))
		}
	}
	return n
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, k := range counts {
		if k > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}
