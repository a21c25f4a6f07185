// Package model_selection provides cross-validation splitters, parameter
// grids and exhaustive grid search compatible with scikit-learn's API.
package model_selection

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// Fold is one train/validation partition of the sample indices.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitting.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter.
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// Split partitions n samples into NSplits folds. The first n % NSplits folds
// hold one extra sample. Train indices are in ascending order.
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if kf.NSplits > n {
		return nil, errors.NewValueError("KFold.Split",
			fmt.Sprintf("cannot have n_splits=%d greater than the number of samples n_samples=%d", kf.NSplits, n))
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits
	inTest := make([]bool, n)

	current := 0
	for k := 0; k < kf.NSplits; k++ {
		size := foldSize
		if k < remainder {
			size++
		}

		test := make([]int, size)
		copy(test, indices[current:current+size])
		for _, idx := range test {
			inTest[idx] = true
		}

		train := make([]int, 0, n-size)
		for idx := 0; idx < n; idx++ {
			if !inTest[idx] {
				train = append(train, idx)
			}
		}
		for _, idx := range test {
			inTest[idx] = false
		}

		folds[k] = Fold{TrainIndices: train, TestIndices: test}
		current += size
	}
	return folds, nil
}

// Subset copies the given rows of X and y, in the order given.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, xCols := X.Dims()
	_, yCols := y.Dims()
	xSub := mat.NewDense(len(indices), xCols, nil)
	ySub := mat.NewDense(len(indices), yCols, nil)

	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xSub.Set(i, j, X.At(idx, j))
		}
		for j := 0; j < yCols; j++ {
			ySub.Set(i, j, y.At(idx, j))
		}
	}
	return xSub, ySub
}
