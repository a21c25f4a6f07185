package neighbors

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

func lineData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 4})
	y := mat.NewDense(5, 1, []float64{0, 10, 20, 30, 40})
	return X, y
}

func TestKNeighborsRegressor_Uniform(t *testing.T) {
	X, y := lineData()
	knn := NewKNeighborsRegressor(WithNNeighbors(2))
	require.NoError(t, knn.Fit(X, y))

	pred, err := knn.Predict(mat.NewDense(2, 1, []float64{1.4, 10}))
	require.NoError(t, err)
	// 1.4 の近傍は 1 と 2
	assert.InDelta(t, 15.0, pred.At(0, 0), 1e-12)
	// 10 の近傍は 4 と 3
	assert.InDelta(t, 35.0, pred.At(1, 0), 1e-12)
}

func TestKNeighborsRegressor_TiesByIndex(t *testing.T) {
	X, y := lineData()
	knn := NewKNeighborsRegressor(WithNNeighbors(1))
	require.NoError(t, knn.Fit(X, y))

	// 1.5 は 1 と 2 から等距離、先に現れる 1 を選ぶ
	pred, err := knn.Predict(mat.NewDense(1, 1, []float64{1.5}))
	require.NoError(t, err)
	assert.Equal(t, 10.0, pred.At(0, 0))
}

func TestKNeighborsRegressor_LargeBatchMatchesRowwise(t *testing.T) {
	X, y := lineData()
	knn := NewKNeighborsRegressor(WithNNeighbors(3), WithWeights(WeightsDistance))
	require.NoError(t, knn.Fit(X, y))

	n := parallelThreshold * 3
	queries := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		queries.Set(i, 0, float64(i%50)/10)
	}
	batch, err := knn.Predict(queries)
	require.NoError(t, err)

	for _, i := range []int{0, 7, parallelThreshold + 1, n - 1} {
		single, err := knn.Predict(mat.NewDense(1, 1, []float64{queries.At(i, 0)}))
		require.NoError(t, err)
		assert.Equal(t, single.At(0, 0), batch.At(i, 0), "row %d", i)
	}
}

func TestKNeighborsRegressor_Distance(t *testing.T) {
	X, y := lineData()
	knn := NewKNeighborsRegressor(WithNNeighbors(2), WithWeights(WeightsDistance))
	require.NoError(t, knn.Fit(X, y))

	pred, err := knn.Predict(mat.NewDense(2, 1, []float64{1.25, 3}))
	require.NoError(t, err)
	// 重み 1/0.25=4 (y=10) と 1/0.75 (y=20)
	want := (4*10.0 + 20.0/0.75) / (4 + 1/0.75)
	assert.InDelta(t, want, pred.At(0, 0), 1e-9)
	// 学習点と一致する場合はその値
	assert.Equal(t, 30.0, pred.At(1, 0))

	score, err := knn.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestKNeighborsRegressor_Errors(t *testing.T) {
	X, y := lineData()

	_, err := NewKNeighborsRegressor().Predict(X)
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	err = NewKNeighborsRegressor(WithNNeighbors(6)).Fit(X, y)
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))

	err = NewKNeighborsRegressor(WithWeights("gaussian")).Fit(X, y)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	knn := NewKNeighborsRegressor(WithNNeighbors(2))
	require.NoError(t, knn.Fit(X, y))
	_, err = knn.Predict(mat.NewDense(1, 2, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestKNeighborsRegressor_NeighborsRaisedAfterFit(t *testing.T) {
	X, y := lineData()
	knn := NewKNeighborsRegressor(WithNNeighbors(2))
	require.NoError(t, knn.Fit(X, y))
	require.NoError(t, knn.SetParams(map[string]interface{}{"n_neighbors": 9}))

	// 並列経路に入る行数でも panic せずエラーになる
	for _, rows := range []int{1, parallelThreshold * 2} {
		_, err := knn.Predict(mat.NewDense(rows, 1, nil))
		var valueErr *errors.ValueError
		assert.True(t, errors.As(err, &valueErr), "rows=%d", rows)
	}
}

func TestKNeighborsRegressor_Params(t *testing.T) {
	knn := NewKNeighborsRegressor()
	require.NoError(t, knn.SetParams(map[string]interface{}{"n_neighbors": 3.0, "weights": "distance"}))
	assert.Equal(t, map[string]interface{}{"n_neighbors": 3, "weights": "distance"}, knn.GetParams())

	require.Error(t, knn.SetParams(map[string]interface{}{"n_neighbors": 0}))
	require.Error(t, knn.SetParams(map[string]interface{}{"p": 1}))
	require.Error(t, knn.SetParams(map[string]interface{}{"n_neighbors": 7, "weights": "gaussian"}))
	// 拒否された呼び出しは何も変更しない
	assert.Equal(t, 3, knn.NNeighbors)
	assert.Equal(t, WeightsDistance, knn.Weights)

	clone := knn.Clone()
	var _ model.Regressor = knn
	assert.IsType(t, &KNeighborsRegressor{}, clone)
}

func TestKNeighborsRegressor_Persistence(t *testing.T) {
	X, y := lineData()
	knn := NewKNeighborsRegressor(WithNNeighbors(3))
	require.NoError(t, knn.Fit(X, y))

	path := filepath.Join(t.TempDir(), "knn", "model.bin")
	require.NoError(t, model.Save(path, knn))

	restored, err := model.LoadAs[*KNeighborsRegressor](path)
	require.NoError(t, err)

	query := mat.NewDense(1, 1, []float64{2.2})
	want, err := knn.Predict(query)
	require.NoError(t, err)
	got, err := restored.Predict(query)
	require.NoError(t, err)
	assert.Equal(t, want.At(0, 0), got.At(0, 0))
}
