// Package linear_model provides scikit-learn compatible linear regressors.
//
// All estimators implement model.Regressor and keep their learned state in
// exported fields so they can be persisted with model.Save.
package linear_model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/metrics"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

func init() {
	model.Register(&LinearRegression{})
	model.Register(&Ridge{})
	model.Register(&Lasso{})
}

// validateXY は学習データの形状を検証する
func validateXY(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if err := errors.CheckMatrix(op, X, rows, cols, 0); err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

// centerData は切片を学習する場合に X と y を列平均で中心化する
func centerData(X, y mat.Matrix, fitIntercept bool) (*mat.Dense, *mat.VecDense, []float64, float64) {
	rows, cols := X.Dims()
	Xc := mat.DenseCopyOf(X)
	yc := mat.NewVecDense(rows, mat.Col(nil, 0, y))
	xMean := make([]float64, cols)
	var yMean float64

	if !fitIntercept {
		return Xc, yc, xMean, 0
	}

	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += Xc.At(i, j)
		}
		xMean[j] = sum / float64(rows)
		for i := 0; i < rows; i++ {
			Xc.Set(i, j, Xc.At(i, j)-xMean[j])
		}
	}

	for i := 0; i < rows; i++ {
		yMean += yc.AtVec(i)
	}
	yMean /= float64(rows)
	for i := 0; i < rows; i++ {
		yc.SetVec(i, yc.AtVec(i)-yMean)
	}

	return Xc, yc, xMean, yMean
}

// interceptFrom は中心化された係数から切片を復元する
func interceptFrom(coef, xMean []float64, yMean float64) float64 {
	intercept := yMean
	for j, w := range coef {
		intercept -= xMean[j] * w
	}
	return intercept
}

// linearPredict は y = X * coef + intercept を計算する
func linearPredict(X mat.Matrix, coef []float64, intercept float64) *mat.Dense {
	rows, cols := X.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred := intercept
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * coef[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions
}

// score は予測値に対する決定係数（R²）を計算する
func score(p model.Predictor, X, y mat.Matrix) (float64, error) {
	predictions, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, predictions)
}

func copyFloats(src []float64) []float64 {
	if src == nil {
		return nil
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}
