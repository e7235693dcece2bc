// Package forest implements a random-forest regressor over a single numeric
// feature. Trees are grown on bootstrap samples with variance-reduction splits,
// and the forest prediction is the mean of the tree predictions.
//
// Fitted forests are plain data (flat node slices) so they serialize to JSON and
// reproduce identical predictions after a round trip.
package forest

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
)

var (
	// ErrNoSamples is returned when Fit is called without training data.
	ErrNoSamples = errors.New("forest: no training samples")

	// ErrLengthMismatch is returned when features and targets differ in length.
	ErrLengthMismatch = errors.New("forest: features and targets differ in length")

	// ErrMalformed is returned by Validate for a structurally invalid forest.
	ErrMalformed = errors.New("forest: malformed model")
)

// Params controls tree growth.
type Params struct {
	Trees           int // number of trees, >= 1
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int // smallest node that may be split, >= 2
	MinSamplesLeaf  int // smallest allowed leaf, >= 1
}

// DefaultParams mirrors the usual random-forest regressor defaults: 100 fully
// grown trees.
func DefaultParams() Params {
	return Params{
		Trees:           100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

func (p Params) normalized() Params {
	if p.Trees < 1 {
		p.Trees = 1
	}
	if p.MaxDepth < 0 {
		p.MaxDepth = 0
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	return p
}

// Forest is a fitted ensemble.
type Forest struct {
	Trees []Tree `json:"trees"`
}

// Tree is a fitted regression tree stored as a flat node slice; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is either a split (Left > 0) or a leaf (Left == 0 and Right == 0).
// Samples with x <= Threshold go left.
type Node struct {
	Threshold float64 `json:"t,omitempty"`
	Left      int32   `json:"l,omitempty"`
	Right     int32   `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

func (n Node) leaf() bool { return n.Left == 0 && n.Right == 0 }

// Fit grows a forest on (x, y). The rng drives bootstrap sampling only; the same
// rng state and inputs always yield the same forest.
func Fit(x, y []float64, params Params, rng *rand.Rand) (*Forest, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d features, %d targets", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) == 0 {
		return nil, ErrNoSamples
	}
	params = params.normalized()

	f := &Forest{Trees: make([]Tree, params.Trees)}
	boot := make([]sample, len(x))
	for t := range f.Trees {
		for i := range boot {
			j := rng.IntN(len(x))
			boot[i].x = x[j]
			boot[i].y = y[j]
		}
		f.Trees[t] = growTree(boot, params)
	}
	return f, nil
}

// Predict returns the mean tree prediction for x.
func (f *Forest) Predict(x float64) float64 {
	if f == nil || len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Predict walks the tree from the root to a leaf.
func (t *Tree) Predict(x float64) float64 {
	i := int32(0)
	for {
		n := t.Nodes[i]
		if n.leaf() {
			return n.Value
		}
		if x <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// NodeCount returns the total number of nodes across all trees.
func (f *Forest) NodeCount() int {
	var n int
	for i := range f.Trees {
		n += len(f.Trees[i].Nodes)
	}
	return n
}

// Validate checks that every tree is non-empty and every child index points
// forward inside its tree, which guarantees Predict terminates.
func (f *Forest) Validate() error {
	if f == nil || len(f.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrMalformed)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d has no nodes", ErrMalformed, ti)
		}
		for ni, n := range t.Nodes {
			if n.leaf() {
				continue
			}
			if n.Left <= int32(ni) || n.Right <= int32(ni) ||
				int(n.Left) >= len(t.Nodes) || int(n.Right) >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has invalid children", ErrMalformed, ti, ni)
			}
		}
	}
	return nil
}

type sample struct {
	x, y float64
}

// growTree sorts the bootstrap sample by x once; every split of a sorted range
// yields two sorted sub-ranges, so nodes work on contiguous slices.
func growTree(in []sample, p Params) Tree {
	s := make([]sample, len(in))
	copy(s, in)
	sort.Slice(s, func(i, j int) bool { return s[i].x < s[j].x })

	b := &builder{samples: s, params: p}
	b.grow(0, len(s), 0)
	return Tree{Nodes: b.nodes}
}

type builder struct {
	samples []sample
	params  Params
	nodes   []Node
}

// grow appends the node for samples[lo:hi] and returns its index.
func (b *builder) grow(lo, hi, depth int) int32 {
	idx := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Value: b.mean(lo, hi)})

	n := hi - lo
	if n < b.params.MinSamplesSplit || (b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return idx
	}

	cut, threshold, ok := b.bestSplit(lo, hi)
	if !ok {
		return idx
	}

	left := b.grow(lo, cut, depth+1)
	right := b.grow(cut, hi, depth+1)
	b.nodes[idx].Threshold = threshold
	b.nodes[idx].Left = left
	b.nodes[idx].Right = right
	return idx
}

func (b *builder) mean(lo, hi int) float64 {
	var sum float64
	for _, s := range b.samples[lo:hi] {
		sum += s.y
	}
	return sum / float64(hi-lo)
}

// bestSplit scans every boundary between distinct x values and returns the cut
// minimizing the summed squared error of both children. ok is false when no cut
// respects MinSamplesLeaf or no cut reduces the error.
func (b *builder) bestSplit(lo, hi int) (cut int, threshold float64, ok bool) {
	s := b.samples[lo:hi]
	n := len(s)

	var totalSum, totalSq float64
	for _, v := range s {
		totalSum += v.y
		totalSq += v.y * v.y
	}
	parentSSE := totalSq - totalSum*totalSum/float64(n)
	if parentSSE <= 1e-12 {
		return 0, 0, false
	}

	best := parentSSE
	var leftSum, leftSq float64
	minLeaf := b.params.MinSamplesLeaf
	for i := 1; i < n; i++ {
		leftSum += s[i-1].y
		leftSq += s[i-1].y * s[i-1].y
		if s[i-1].x == s[i].x || i < minLeaf || n-i < minLeaf {
			continue
		}
		nl, nr := float64(i), float64(n-i)
		rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
		sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
		if sse < best {
			best = sse
			cut = lo + i
			threshold = (s[i-1].x + s[i].x) / 2
			ok = true
		}
	}
	return cut, threshold, ok
}
