package model_selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// TrainTestSplit shuffles the rows with a PCG source seeded by seed and
// holds out ceil(testSize * n) of them as the test split.
//
// Example:
//
//	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(X, y, 0.25, 42)
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n, _ := X.Dims()
	yRows, _ := y.Dims()
	if n != yRows {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", n, yRows, 0)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, nil, nil, nil, errors.NewValueError("TrainTestSplit",
			"test_size leaves an empty train or test split")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	r.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	XTest, yTest = Subset(X, y, indices[:nTest])
	XTrain, yTrain = Subset(X, y, indices[nTest:])
	return XTrain, XTest, yTrain, yTest, nil
}
