package tree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// ステップ関数: x < 3 なら 1、それ以外は 5
func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{1, 1, 1, 5, 5, 5})
	return X, y
}

func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	assert.Equal(t, 1, dt.Depth())
	assert.Equal(t, 2, dt.NLeaves())
	assert.Equal(t, 0, dt.Nodes[0].Feature)
	assert.InDelta(t, 2.5, dt.Nodes[0].Threshold, 1e-12)

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{-10, 10}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))
	assert.Equal(t, 5.0, pred.At(1, 0))

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestDecisionTreeRegressor_MaxDepth(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	y := mat.NewDense(8, 1, []float64{0, 1, 4, 9, 16, 25, 36, 49})

	full := NewDecisionTreeRegressor()
	require.NoError(t, full.Fit(X, y))
	assert.Equal(t, 8, full.NLeaves())

	stump := NewDecisionTreeRegressor(WithMaxDepth(1))
	require.NoError(t, stump.Fit(X, y))
	assert.Equal(t, 1, stump.Depth())
	assert.Equal(t, 2, stump.NLeaves())
}

func TestDecisionTreeRegressor_MinSamplesLeaf(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 4})
	y := mat.NewDense(5, 1, []float64{0, 0, 0, 0, 100})

	dt := NewDecisionTreeRegressor(WithMinSamplesLeaf(2))
	require.NoError(t, dt.Fit(X, y))
	for _, n := range dt.Nodes {
		if n.IsLeaf() {
			assert.GreaterOrEqual(t, n.NSamples, 2)
		}
	}
}

func TestDecisionTreeRegressor_ConstantTarget(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(3, 1, []float64{7, 7, 7})

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))
	assert.Len(t, dt.Nodes, 1)

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 7.0, pred.At(2, 0))
}

func TestDecisionTreeRegressor_Errors(t *testing.T) {
	dt := NewDecisionTreeRegressor()

	_, err := dt.Predict(mat.NewDense(1, 1, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	err = dt.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = dt.SetParams(map[string]interface{}{"min_samples_split": 1})
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	err = dt.SetParams(map[string]interface{}{"criterion": "gini"})
	assert.True(t, errors.As(err, &valErr))
}

func TestDecisionTreeRegressor_ParamsAndClone(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.SetParams(map[string]interface{}{"max_depth": 3, "min_samples_leaf": 2.0}))
	assert.Equal(t, map[string]interface{}{
		"max_depth":         3,
		"min_samples_split": 2,
		"min_samples_leaf":  2,
	}, dt.GetParams())

	// 不正な値を含む呼び出しは全体が拒否され、既存の値が残る
	var valErr *errors.ValidationError
	err := dt.SetParams(map[string]interface{}{"max_depth": 8, "min_samples_split": 1})
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, 3, dt.MaxDepth)
	assert.Equal(t, 2, dt.MinSamplesSplit)

	clone := dt.Clone().(*DecisionTreeRegressor)
	assert.Equal(t, dt.GetParams(), clone.GetParams())
	assert.False(t, clone.IsFitted())

	var _ model.Regressor = dt
}

func TestDecisionTreeRegressor_Persistence(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMaxDepth(4))
	require.NoError(t, dt.Fit(X, y))

	path := filepath.Join(t.TempDir(), "trees", "dt.model")
	require.NoError(t, model.Save(path, dt))

	restored, err := model.LoadAs[*DecisionTreeRegressor](path)
	require.NoError(t, err)
	assert.Equal(t, dt.Nodes, restored.Nodes)

	pred, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))
}
