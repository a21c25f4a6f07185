// Package metrics provides regression metrics and named scoring functions.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}

	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}

	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
//
// R² = 1 - RSS/TSS。yTrueに分散がない場合はエラーを返す。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := stat.Mean(mat.Col(nil, 0, yTrue), nil)

	// 全変動（TSS）と残差変動（RSS）を計算
	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		yPredVal := yPred.AtVec(i)

		tss += (yTrueVal - yMean) * (yTrueVal - yMean)
		rss += (yTrueVal - yPredVal) * (yTrueVal - yPredVal)
	}

	// yTrueが一定の場合: 完全一致なら1、それ以外は0（scikit-learnのforce_finite相当）
	if tss == 0 {
		if rss == 0 {
			return 1, nil
		}
		return 0, nil
	}

	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する（yTrue=0の要素は除外）
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	validCount := 0
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		if yTrueVal != 0 {
			sum += math.Abs(yTrueVal-yPred.AtVec(i)) / math.Abs(yTrueVal)
			validCount++
		}
	}

	if validCount == 0 {
		return 0, errors.NewValueError("MAPE", "all yTrue values are zero")
	}

	return (sum / float64(validCount)) * 100, nil
}

// ExplainedVarianceScore は説明分散スコアを計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	truth := make([]float64, n)
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		truth[i] = yTrue.AtVec(i)
		diff[i] = truth[i] - yPred.AtVec(i)
	}

	varYTrue := stat.PopVariance(truth, nil)
	varDiff := stat.PopVariance(diff, nil)
	if varYTrue == 0 {
		if varDiff == 0 {
			return 1, nil
		}
		return 0, nil
	}

	return 1 - varDiff/varYTrue, nil
}

// ColumnVector は n×1 行列を VecDense に変換する
func ColumnVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// ScoreFunc scores predictions against ground truth; higher is better.
type ScoreFunc func(yTrue, yPred mat.Matrix) (float64, error)

// R2ScoreMatrix は行列形式（n×1）の入力に対してR²を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	return matrixScore("R2Score", R2Score, yTrue, yPred)
}

// MSEMatrix は行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	return matrixScore("MSEMatrix", MSE, yTrue, yPred)
}

var scorers = map[string]ScoreFunc{
	"r2": R2ScoreMatrix,
	"neg_mean_squared_error": negate(func(a, b mat.Matrix) (float64, error) {
		return matrixScore("MSE", MSE, a, b)
	}),
	"neg_root_mean_squared_error": negate(func(a, b mat.Matrix) (float64, error) {
		return matrixScore("RMSE", RMSE, a, b)
	}),
	"neg_mean_absolute_error": negate(func(a, b mat.Matrix) (float64, error) {
		return matrixScore("MAE", MAE, a, b)
	}),
	"explained_variance": func(a, b mat.Matrix) (float64, error) {
		return matrixScore("ExplainedVarianceScore", ExplainedVarianceScore, a, b)
	},
}

// Scorer looks up a scoring function by its scikit-learn name
// ("r2", "neg_mean_squared_error", ...).
func Scorer(name string) (ScoreFunc, error) {
	fn, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scorer, expected one of "+joinNames(), name)
	}
	return fn, nil
}

// ScorerNames returns the registered scorer names in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinNames() string {
	out := ""
	for i, name := range ScorerNames() {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}

func negate(fn ScoreFunc) ScoreFunc {
	return func(yTrue, yPred mat.Matrix) (float64, error) {
		v, err := fn(yTrue, yPred)
		return -v, err
	}
}

func matrixScore(op string, fn func(a, b *mat.VecDense) (float64, error), yTrue, yPred mat.Matrix) (float64, error) {
	a, err := ColumnVector(op, yTrue)
	if err != nil {
		return 0, err
	}
	b, err := ColumnVector(op, yPred)
	if err != nil {
		return 0, err
	}
	return fn(a, b)
}

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}
