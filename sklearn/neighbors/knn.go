// Package neighbors implements nearest-neighbor regression.
package neighbors

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/core/parallel"
	"github.com/YuminosukeSato/mlkit/metrics"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

func init() {
	model.Register(&KNeighborsRegressor{})
}

// parallelThreshold is the number of query rows above which Predict splits
// the work across CPU cores.
const parallelThreshold = 256

// Weight functions accepted by KNeighborsRegressor.
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// KNeighborsRegressor predicts the (optionally distance weighted) mean target
// of the k nearest training samples under the Euclidean metric.
type KNeighborsRegressor struct {
	State *model.StateManager

	NNeighbors int
	Weights    string

	// 学習データ（行優先で保持）
	TrainX []float64
	TrainY []float64
}

// Option configures a KNeighborsRegressor.
type Option func(*KNeighborsRegressor)

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option {
	return func(r *KNeighborsRegressor) {
		r.NNeighbors = k
	}
}

// WithWeights sets the weight function, "uniform" or "distance".
func WithWeights(weights string) Option {
	return func(r *KNeighborsRegressor) {
		r.Weights = weights
	}
}

// NewKNeighborsRegressor creates a regressor with k=5 and uniform weights.
func NewKNeighborsRegressor(options ...Option) *KNeighborsRegressor {
	r := &KNeighborsRegressor{
		State:      model.NewStateManager(),
		NNeighbors: 5,
		Weights:    WeightsUniform,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *KNeighborsRegressor) validateParams() error {
	if r.NNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be at least 1", r.NNeighbors)
	}
	if r.Weights != WeightsUniform && r.Weights != WeightsDistance {
		return errors.NewValidationError("weights", "must be 'uniform' or 'distance'", r.Weights)
	}
	return nil
}

// Fit memorizes the training data.
func (r *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	if err := r.validateParams(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("KNeighborsRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("KNeighborsRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("KNeighborsRegressor.Fit", 1, yCols, 1)
	}
	if r.NNeighbors > rows {
		return errors.NewValueError("KNeighborsRegressor.Fit",
			fmt.Sprintf("n_neighbors=%d exceeds n_samples=%d", r.NNeighbors, rows))
	}

	r.TrainX = make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			r.TrainX = append(r.TrainX, X.At(i, j))
		}
	}
	r.TrainY = mat.Col(nil, 0, y)
	r.ensureState().SetFitted(cols, rows)
	return nil
}

// Predict averages the targets of the nearest neighbors of each row.
// Equidistant neighbors are ordered by training index.
func (r *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.ensureState().RequireFitted("KNeighborsRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := r.State.RequireFeatures("KNeighborsRegressor.Predict", cols); err != nil {
		return nil, err
	}

	_, nTrain := r.State.GetDimensions()
	// SetParamsで学習後にkが変更されている可能性がある
	if r.NNeighbors < 1 || r.NNeighbors > nTrain {
		return nil, errors.NewValueError("KNeighborsRegressor.Predict",
			fmt.Sprintf("n_neighbors=%d exceeds n_samples_fit=%d", r.NNeighbors, nTrain))
	}
	predictions := mat.NewDense(rows, 1, nil)
	unstable := make([]bool, rows)

	// 行ごとに独立なので一定件数を超えたらチャンク単位で並列化
	parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
		candidates := make([]neighbor, nTrain)
		query := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(query, i, X)
			pred := r.predictOne(query, candidates)
			unstable[i] = math.IsNaN(pred)
			predictions.Set(i, 0, pred)
		}
	})

	for i, bad := range unstable {
		if bad {
			return nil, errors.NewNumericalInstabilityError("KNeighborsRegressor.Predict", []float64{predictions.At(i, 0)}, i)
		}
	}
	return predictions, nil
}

type neighbor struct {
	index int
	dist  float64
}

// predictOne computes the prediction for a single query row. candidates is
// scratch space of length n_samples.
func (r *KNeighborsRegressor) predictOne(query []float64, candidates []neighbor) float64 {
	cols := len(query)
	for j := range candidates {
		candidates[j] = neighbor{index: j, dist: floats.Distance(query, r.TrainX[j*cols:(j+1)*cols], 2)}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].dist < candidates[b].dist
	})

	nearest := candidates[:r.NNeighbors]
	switch {
	case r.Weights == WeightsDistance && nearest[0].dist == 0:
		// 距離0の点が存在する場合はそれらの平均
		var sum float64
		var count int
		for _, nb := range nearest {
			if nb.dist == 0 {
				sum += r.TrainY[nb.index]
				count++
			}
		}
		return sum / float64(count)
	case r.Weights == WeightsDistance:
		var sum, weightSum float64
		for _, nb := range nearest {
			w := 1 / nb.dist
			sum += w * r.TrainY[nb.index]
			weightSum += w
		}
		return sum / weightSum
	default:
		var sum float64
		for _, nb := range nearest {
			sum += r.TrainY[nb.index]
		}
		return sum / float64(len(nearest))
	}
}

// Score returns R^2 of the prediction.
func (r *KNeighborsRegressor) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, predictions)
}

func (r *KNeighborsRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": r.NNeighbors,
		"weights":     r.Weights,
	}
}

func (r *KNeighborsRegressor) SetParams(params map[string]interface{}) error {
	next := *r
	for name, value := range params {
		switch name {
		case "n_neighbors":
			v, err := model.IntParam(name, value)
			if err != nil {
				return err
			}
			next.NNeighbors = v
		case "weights":
			v, err := model.StringParam(name, value)
			if err != nil {
				return err
			}
			next.Weights = v
		default:
			return model.UnknownParam("KNeighborsRegressor", name, value)
		}
	}
	if err := next.validateParams(); err != nil {
		return err
	}
	*r = next
	return nil
}

func (r *KNeighborsRegressor) IsFitted() bool {
	return r.State.IsFitted()
}

func (r *KNeighborsRegressor) Clone() model.Estimator {
	return NewKNeighborsRegressor(WithNNeighbors(r.NNeighbors), WithWeights(r.Weights))
}

func (r *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d, weights=%s)", r.NNeighbors, r.Weights)
}

func (r *KNeighborsRegressor) ensureState() *model.StateManager {
	if r.State == nil {
		r.State = model.NewStateManager()
	}
	return r.State
}
