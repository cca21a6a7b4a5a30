// Package model implements the tree-ensemble classifier behind the
// pipeline's opaque predict step. The pipeline only depends on Predict;
// Fit exists for the training command.
package model

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is one decision-tree node. Leaf nodes carry a class; interior
// nodes split on Feature at Threshold, routing missing values to the
// left or right child per DefaultLeft.
type Node struct {
	Leaf        bool
	Class       int
	Feature     int
	Threshold   float64
	DefaultLeft bool
	Left        *Node
	Right       *Node
}

// Forest is a bagged ensemble of classification trees. All fields are
// exported for gob serialization; the struct is immutable after Fit.
type Forest struct {
	Trees      []*Node
	NumClasses int
}

// Config holds the training hyperparameters for Fit.
type Config struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64
}

// DefaultConfig returns the settings used by the train command.
func DefaultConfig() Config {
	return Config{NumTrees: 100, MaxDepth: 12, MinSamplesSplit: 4, Seed: 42}
}

// Predict returns the majority-vote class code for every row of X.
func (f *Forest) Predict(X mat.Matrix) []int {
	rows, _ := X.Dims()
	preds := make([]int, rows)
	votes := make([]int, f.NumClasses)
	for i := 0; i < rows; i++ {
		for j := range votes {
			votes[j] = 0
		}
		for _, tree := range f.Trees {
			votes[tree.predict(X, i)]++
		}
		best := 0
		for j := range votes {
			if votes[j] > votes[best] {
				best = j
			}
		}
		preds[i] = best
	}
	return preds
}

func (n *Node) predict(X mat.Matrix, row int) int {
	for !n.Leaf {
		v := X.At(row, n.Feature)
		if math.IsNaN(v) {
			if n.DefaultLeft {
				n = n.Left
			} else {
				n = n.Right
			}
		} else if v <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Class
}

// Fit trains a random forest on X with integer class labels y.
func Fit(X mat.Matrix, y []int, cfg Config) *Forest {
	rows, cols := X.Dims()
	numClasses := 0
	for _, c := range y {
		if c+1 > numClasses {
			numClasses = c + 1
		}
	}
	f := &Forest{NumClasses: numClasses}
	rng := rand.New(rand.NewSource(cfg.Seed))
	featuresPerSplit := int(math.Sqrt(float64(cols)))
	if featuresPerSplit < 1 {
		featuresPerSplit = 1
	}
	for t := 0; t < cfg.NumTrees; t++ {
		sample := make([]int, rows)
		for i := range sample {
			sample[i] = rng.Intn(rows)
		}
		f.Trees = append(f.Trees, buildTree(X, y, sample, numClasses, featuresPerSplit, cfg, 0, rng))
	}
	return f
}

func buildTree(X mat.Matrix, y, sample []int, numClasses, featuresPerSplit int, cfg Config, depth int, rng *rand.Rand) *Node {
	counts := make([]int, numClasses)
	for _, i := range sample {
		counts[y[i]]++
	}
	majority, pure := majorityClass(counts)
	if pure || depth >= cfg.MaxDepth || len(sample) < cfg.MinSamplesSplit {
		return &Node{Leaf: true, Class: majority}
	}

	_, cols := X.Dims()
	feature, threshold, gain := -1, 0.0, 0.0
	for k := 0; k < featuresPerSplit; k++ {
		j := rng.Intn(cols)
		th, g, ok := bestSplit(X, y, sample, j, numClasses)
		if ok && g > gain {
			feature, threshold, gain = j, th, g
		}
	}
	if feature < 0 {
		return &Node{Leaf: true, Class: majority}
	}

	var left, right []int
	leftCount := 0
	for _, i := range sample {
		v := X.At(i, feature)
		if !math.IsNaN(v) && v <= threshold {
			leftCount++
		}
	}
	defaultLeft := leftCount*2 >= len(sample)
	for _, i := range sample {
		v := X.At(i, feature)
		if math.IsNaN(v) {
			if defaultLeft {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		} else if v <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &Node{Leaf: true, Class: majority}
	}
	return &Node{
		Feature:     feature,
		Threshold:   threshold,
		DefaultLeft: defaultLeft,
		Left:        buildTree(X, y, left, numClasses, featuresPerSplit, cfg, depth+1, rng),
		Right:       buildTree(X, y, right, numClasses, featuresPerSplit, cfg, depth+1, rng),
	}
}

func majorityClass(counts []int) (class int, pure bool) {
	total, nonZero := 0, 0
	for c, n := range counts {
		total += n
		if n > 0 {
			nonZero++
		}
		if n > counts[class] {
			class = c
		}
	}
	return class, nonZero <= 1 || total == 0
}

// bestSplit scans candidate thresholds for one feature and returns the
// split with the highest gini gain. Missing values are excluded from
// threshold selection.
func bestSplit(X mat.Matrix, y, sample []int, feature, numClasses int) (threshold, gain float64, ok bool) {
	type pair struct {
		v float64
		c int
	}
	var pairs []pair
	for _, i := range sample {
		v := X.At(i, feature)
		if !math.IsNaN(v) {
			pairs = append(pairs, pair{v, y[i]})
		}
	}
	if len(pairs) < 2 {
		return 0, 0, false
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

	total := make([]float64, numClasses)
	for _, p := range pairs {
		total[p.c]++
	}
	parent := gini(total, float64(len(pairs)))

	left := make([]float64, numClasses)
	n := float64(len(pairs))
	for i := 0; i < len(pairs)-1; i++ {
		left[pairs[i].c]++
		if pairs[i].v == pairs[i+1].v {
			continue
		}
		nl := float64(i + 1)
		nr := n - nl
		right := make([]float64, numClasses)
		for c := range right {
			right[c] = total[c] - left[c]
		}
		g := parent - (nl/n)*gini(left, nl) - (nr/n)*gini(right, nr)
		if g > gain {
			gain = g
			threshold = (pairs[i].v + pairs[i+1].v) / 2
			ok = true
		}
	}
	return threshold, gain, ok
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := c / n
		impurity -= p * p
	}
	return impurity
}
