// Package tree implements CART decision trees for regression.
package tree

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/metrics"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

func init() {
	model.Register(&DecisionTreeRegressor{})
}

const leafIndex = -1

// Node is one entry of the flattened tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	NSamples  int
	Impurity  float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left == leafIndex
}

// DecisionTreeRegressor is a CART regression tree using the squared error criterion.
type DecisionTreeRegressor struct {
	State *model.StateManager

	// MaxDepth <= 0 means the tree grows until leaves are pure or
	// MinSamplesSplit stops it.
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int

	Nodes []Node
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum depth of the tree.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MinSamplesLeaf = n
	}
}

// NewDecisionTreeRegressor creates a tree with scikit-learn defaults.
func NewDecisionTreeRegressor(options ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *DecisionTreeRegressor) validateParams() error {
	if t.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.MinSamplesLeaf)
	}
	return nil
}

// Fit grows the tree depth-first. Ties between candidate splits keep the
// first one found (lowest feature index, then lowest threshold).
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	if err := t.validateParams(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("DecisionTreeRegressor.Fit", X, rows, cols, 0); err != nil {
		return err
	}

	b := &builder{
		X:      mat.DenseCopyOf(X),
		y:      mat.Col(nil, 0, y),
		params: t,
	}
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	b.grow(indices, 0)

	t.Nodes = b.nodes
	t.ensureState().SetFitted(cols, rows)
	return nil
}

// Predict walks each row of X down the tree.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.ensureState().RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := t.State.RequireFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}

	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		idx := 0
		for !t.Nodes[idx].IsLeaf() {
			node := &t.Nodes[idx]
			if X.At(i, node.Feature) <= node.Threshold {
				idx = node.Left
			} else {
				idx = node.Right
			}
		}
		predictions.Set(i, 0, t.Nodes[idx].Value)
	}
	return predictions, nil
}

// Score returns R^2 of the prediction.
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, predictions)
}

// Depth returns the depth of the fitted tree. A single leaf has depth 0.
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var depth func(idx int) int
	depth = func(idx int) int {
		n := &t.Nodes[idx]
		if n.IsLeaf() {
			return 0
		}
		l, r := depth(n.Left), depth(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return depth(0)
}

// NLeaves returns the number of leaves of the fitted tree.
func (t *DecisionTreeRegressor) NLeaves() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
	}
}

func (t *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	// 検証が通るまでレシーバは変更しない
	next := *t
	for name, value := range params {
		v, err := model.IntParam(name, value)
		if err != nil {
			return err
		}
		switch name {
		case "max_depth":
			next.MaxDepth = v
		case "min_samples_split":
			next.MinSamplesSplit = v
		case "min_samples_leaf":
			next.MinSamplesLeaf = v
		default:
			return model.UnknownParam("DecisionTreeRegressor", name, value)
		}
	}
	if err := next.validateParams(); err != nil {
		return err
	}
	*t = next
	return nil
}

func (t *DecisionTreeRegressor) IsFitted() bool {
	return t.State.IsFitted()
}

func (t *DecisionTreeRegressor) Clone() model.Estimator {
	return NewDecisionTreeRegressor(
		WithMaxDepth(t.MaxDepth),
		WithMinSamplesSplit(t.MinSamplesSplit),
		WithMinSamplesLeaf(t.MinSamplesLeaf),
	)
}

func (t *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		t.MaxDepth, t.MinSamplesSplit, t.MinSamplesLeaf)
}

func (t *DecisionTreeRegressor) ensureState() *model.StateManager {
	if t.State == nil {
		t.State = model.NewStateManager()
	}
	return t.State
}

type builder struct {
	X      *mat.Dense
	y      []float64
	params *DecisionTreeRegressor
	nodes  []Node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// grow appends the subtree for indices and returns its node index.
func (b *builder) grow(indices []int, depth int) int {
	mean, impurity := b.stats(indices)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Left:     leafIndex,
		Right:    leafIndex,
		Value:    mean,
		NSamples: len(indices),
		Impurity: impurity,
	})

	if !b.canSplit(indices, depth, impurity) {
		return idx
	}
	best, ok := b.bestSplit(indices, impurity)
	if !ok {
		return idx
	}

	var left, right []int
	for _, i := range indices {
		if b.X.At(i, best.feature) <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx].Feature = best.feature
	b.nodes[idx].Threshold = best.threshold
	b.nodes[idx].Left = l
	b.nodes[idx].Right = r
	return idx
}

func (b *builder) canSplit(indices []int, depth int, impurity float64) bool {
	p := b.params
	if p.MaxDepth > 0 && depth >= p.MaxDepth {
		return false
	}
	if len(indices) < p.MinSamplesSplit || len(indices) < 2*p.MinSamplesLeaf {
		return false
	}
	return impurity > 0
}

// stats は平均と平均二乗誤差（不純度）を返す
func (b *builder) stats(indices []int) (mean, impurity float64) {
	n := float64(len(indices))
	for _, i := range indices {
		mean += b.y[i]
	}
	mean /= n
	for _, i := range indices {
		d := b.y[i] - mean
		impurity += d * d
	}
	return mean, impurity / n
}

// bestSplit scans every feature with running sums so each feature costs
// O(n log n) for the sort plus O(n) for the sweep.
func (b *builder) bestSplit(indices []int, parentImpurity float64) (split, bool) {
	n := len(indices)
	minLeaf := b.params.MinSamplesLeaf
	_, cols := b.X.Dims()

	var totalSum, totalSq float64
	for _, i := range indices {
		totalSum += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}

	best := split{gain: 0}
	found := false
	sorted := make([]int, n)

	for f := 0; f < cols; f++ {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yi := b.y[sorted[k]]
			leftSum += yi
			leftSq += yi * yi

			nLeft := k + 1
			nRight := n - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			xCur := b.X.At(sorted[k], f)
			xNext := b.X.At(sorted[k+1], f)
			if xCur == xNext {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			leftSSE := leftSq - leftSum*leftSum/float64(nLeft)
			rightSSE := rightSq - rightSum*rightSum/float64(nRight)
			childImpurity := (leftSSE + rightSSE) / float64(n)
			gain := parentImpurity - childImpurity

			if gain > best.gain+1e-12 {
				best = split{
					feature:   f,
					threshold: xCur + (xNext-xCur)/2,
					gain:      gain,
				}
				found = true
			}
		}
	}

	if found && math.IsNaN(best.threshold) {
		return split{}, false
	}
	return best, found
}
