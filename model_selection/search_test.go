package model_selection

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
	"github.com/YuminosukeSato/mlkit/pkg/log"
	"github.com/YuminosukeSato/mlkit/sklearn/linear_model"
	"github.com/YuminosukeSato/mlkit/sklearn/neighbors"
)

// y = 3x + 1 にわずかなノイズを乗せたデータ
func regressionData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / 2
		X.Set(i, 0, x)
		y.Set(i, 0, 3*x+1+0.1*math.Sin(float64(i)*1.7))
	}
	return X, y
}

// meanEstimator predicts the training mean and lacks Clone.
type meanEstimator struct {
	Offset float64
	mean   float64
	fits   int
}

func (m *meanEstimator) Fit(_, y mat.Matrix) error {
	r, _ := y.Dims()
	m.mean = mat.Sum(y)/float64(r) + m.Offset
	m.fits++
	return nil
}

func (m *meanEstimator) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.mean)
	}
	return out, nil
}

func (m *meanEstimator) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		if name != "offset" {
			return model.UnknownParam("meanEstimator", name, v)
		}
		f, err := model.FloatParam(name, v)
		if err != nil {
			return err
		}
		m.Offset = f
	}
	return nil
}

type panicEstimator struct{ meanEstimator }

func (p *panicEstimator) Fit(_, _ mat.Matrix) error {
	panic("boom")
}

// cancelingEstimator is a cloneable meanEstimator that cancels the search
// context once the shared fit counter reaches after.
type cancelingEstimator struct {
	meanEstimator
	fits   *int32
	after  int32
	cancel context.CancelFunc
}

func (c *cancelingEstimator) Fit(X, y mat.Matrix) error {
	if atomic.AddInt32(c.fits, 1) == c.after {
		c.cancel()
	}
	return c.meanEstimator.Fit(X, y)
}

func (c *cancelingEstimator) Clone() model.Estimator {
	return &cancelingEstimator{
		meanEstimator: meanEstimator{Offset: c.Offset},
		fits:          c.fits,
		after:         c.after,
		cancel:        c.cancel,
	}
}

func TestGridSearchCV_SelectsBestAlpha(t *testing.T) {
	X, y := regressionData(40)
	ridge := linear_model.NewRidge()
	gs := NewGridSearchCV(ridge, ParamGrid{"alpha": {100.0, 0.01, 10.0}}, WithCV(4))

	require.NoError(t, gs.Fit(X, y))
	assert.Equal(t, map[string]interface{}{"alpha": 0.01}, gs.BestParams)
	assert.Equal(t, 1, gs.BestIndex)
	assert.Len(t, gs.CVResults, 3)
	assert.Equal(t, 1, gs.CVResults[1].Rank)
	assert.Len(t, gs.CVResults[0].FoldScores, 4)
	assert.InDelta(t, gs.CVResults[1].MeanScore, gs.BestScore, 0)

	// 探索はクローン上で行われ、元のインスタンスは変更されない
	assert.Equal(t, 1.0, ridge.Alpha)
	assert.False(t, ridge.IsFitted())

	require.NotNil(t, gs.BestEstimator)
	assert.Equal(t, 0.01, gs.BestEstimator.(*linear_model.Ridge).Alpha)
	pred, err := gs.Predict(X)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 40, r)
}

func TestGridSearchCV_ParallelMatchesSequential(t *testing.T) {
	X, y := regressionData(30)
	grid := ParamGrid{"n_neighbors": {1, 2, 3, 5, 8}, "weights": {"uniform", "distance"}}

	seq := NewGridSearchCV(neighbors.NewKNeighborsRegressor(), grid, WithCV(3), WithNJobs(1), WithShuffle(true, 3))
	require.NoError(t, seq.Fit(X, y))

	par := NewGridSearchCV(neighbors.NewKNeighborsRegressor(), grid, WithCV(3), WithNJobs(4), WithShuffle(true, 3))
	require.NoError(t, par.Fit(X, y))

	assert.Equal(t, seq.BestParams, par.BestParams)
	assert.Equal(t, seq.BestIndex, par.BestIndex)
	for i := range seq.CVResults {
		assert.Equal(t, seq.CVResults[i].FoldScores, par.CVResults[i].FoldScores)
	}
}

func TestGridSearchCV_TiesKeepFirstCombination(t *testing.T) {
	X, y := regressionData(20)
	// fit_interceptの値に関わらず同じスコアになるよう切片なしのデータにする
	for i := 0; i < 20; i++ {
		y.Set(i, 0, 2*X.At(i, 0))
	}
	gs := NewGridSearchCV(linear_model.NewLinearRegression(),
		ParamGrid{"fit_intercept": {false, true}}, WithCV(4), WithRefit(false))
	require.NoError(t, gs.Fit(X, y))

	assert.InDelta(t, gs.CVResults[0].MeanScore, gs.CVResults[1].MeanScore, 1e-9)
	if gs.CVResults[0].MeanScore == gs.CVResults[1].MeanScore {
		assert.Equal(t, 0, gs.BestIndex)
		assert.Equal(t, gs.CVResults[0].Rank, gs.CVResults[1].Rank)
	}
	assert.Nil(t, gs.BestEstimator)
	_, err := gs.Predict(X)
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))
}

func TestGridSearchCV_NonClonerRunsOnInstance(t *testing.T) {
	X, y := regressionData(12)
	est := &meanEstimator{}
	gs := NewGridSearchCV(est, ParamGrid{"offset": {5.0, 0.0}}, WithCV(3), WithNJobs(8))

	require.NoError(t, gs.Fit(X, y))
	assert.Equal(t, map[string]interface{}{"offset": 0.0}, gs.BestParams)
	// 2組み合わせ×3分割 + refit
	assert.Equal(t, 7, est.fits)
	assert.Same(t, est, gs.BestEstimator)
}

func TestGridSearchCV_Scoring(t *testing.T) {
	X, y := regressionData(20)
	gs := NewGridSearchCV(linear_model.NewLinearRegression(), ParamGrid{}, WithCV(2),
		WithScoring("neg_mean_squared_error"))
	require.NoError(t, gs.Fit(X, y))
	assert.LessOrEqual(t, gs.BestScore, 0.0)
	assert.Equal(t, map[string]interface{}{}, gs.BestParams)

	gs.Scoring = "accuracy"
	var valErr *errors.ValidationError
	assert.True(t, errors.As(gs.Fit(X, y), &valErr))
}

func TestGridSearchCV_Errors(t *testing.T) {
	X, y := regressionData(10)

	err := NewGridSearchCV(linear_model.NewRidge(), ParamGrid{"beta": {1.0}}, WithCV(2)).Fit(X, y)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	err = NewGridSearchCV(linear_model.NewRidge(), ParamGrid{"alpha": {1.0}}, WithCV(20)).Fit(X, y)
	require.Error(t, err)

	err = NewGridSearchCV(&panicEstimator{}, ParamGrid{}, WithCV(2)).Fit(X, y)
	var panicErr *errors.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "boom", panicErr.PanicValue)
}

func TestGridSearchCV_VerboseLogging(t *testing.T) {
	X, y := regressionData(12)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	gs := NewGridSearchCV(linear_model.NewRidge(), ParamGrid{"alpha": {0.1, 1.0}},
		WithCV(3), WithVerbose(2), WithSearchLogger(logger))
	require.NoError(t, gs.Fit(X, y))

	assert.True(t, logger.ContainsMessage("Fitting folds for each candidate"))
	assert.True(t, logger.ContainsMessage("fold scored"))
	assert.True(t, logger.ContainsMessage("grid search finished"))
	assert.True(t, logger.ContainsField(log.CombinationsKey, 2.0))
}

func TestCrossValScore(t *testing.T) {
	X, y := regressionData(20)
	lr := linear_model.NewLinearRegression()

	scores, err := CrossValScore(lr, X, y, 4, "")
	require.NoError(t, err)
	require.Len(t, scores, 4)
	for _, s := range scores {
		assert.Greater(t, s, 0.9)
	}
	assert.False(t, lr.IsFitted())

	_, err = CrossValScore(lr, X, y, 1, "r2")
	require.Error(t, err)
}

func TestGridSearchCV_CancelledContext(t *testing.T) {
	X, y := regressionData(20)
	for _, nJobs := range []int{1, 4} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		gs := NewGridSearchCV(linear_model.NewRidge(), ParamGrid{"alpha": {0.1, 1.0, 10.0}},
			WithCV(2), WithNJobs(nJobs))
		err := gs.FitContext(ctx, X, y)
		assert.ErrorIs(t, err, context.Canceled, "nJobs=%d", nJobs)
		assert.Nil(t, gs.CVResults)
		assert.Nil(t, gs.BestParams)
		assert.Nil(t, gs.BestEstimator)
	}
}

func TestGridSearchCV_CancelledMidSearch(t *testing.T) {
	X, y := regressionData(24)
	grid := ParamGrid{"offset": {0.0, 1.0, 2.0, 3.0, 4.0, 5.0}}
	for _, nJobs := range []int{1, 4} {
		ctx, cancel := context.WithCancel(context.Background())
		var fits int32
		est := &cancelingEstimator{fits: &fits, after: 3, cancel: cancel}

		gs := NewGridSearchCV(est, grid, WithCV(3), WithNJobs(nJobs))
		err := gs.FitContext(ctx, X, y)
		cancel()

		assert.ErrorIs(t, err, context.Canceled, "nJobs=%d", nJobs)
		// 6組み合わせ×3分割 = 18 のフィットは最後まで走らない
		assert.Less(t, atomic.LoadInt32(&fits), int32(18), "nJobs=%d", nJobs)
		assert.Nil(t, gs.CVResults)
		assert.Nil(t, gs.BestEstimator)
	}
}
