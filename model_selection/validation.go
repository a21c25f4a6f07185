package model_selection

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
)

// CrossValScore evaluates est by k-fold cross-validation and returns one
// score per fold. Folds are not shuffled. Each fold fits a clone when est
// implements model.Cloner; otherwise est is refitted in place.
//
// Example:
//
//	scores, err := model_selection.CrossValScore(linear_model.NewRidge(), X, y, 5, "r2")
func CrossValScore(est model.Estimator, X, y mat.Matrix, cv int, scoring string) ([]float64, error) {
	score, err := resolveScorer(scoring)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	folds, err := NewKFold(cv, false, 0).Split(n)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	for i, fold := range folds {
		target := est
		if c, ok := est.(model.Cloner); ok {
			target = c.Clone()
		}
		s, err := fitAndScore(target, nil, X, y, fold, score)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	return scores, nil
}
