package preprocessing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

func sampleData() *mat.Dense {
	return mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
}

func TestStandardScaler(t *testing.T) {
	X := sampleData()
	s := NewStandardScalerDefault()

	Xs, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 10}, s.Mean, 1e-12)
	// 定数列のスケールは1
	assert.Equal(t, 1.0, s.Scale[1])

	col := mat.Col(nil, 0, Xs)
	var sum, sq float64
	for _, v := range col {
		sum += v
		sq += v * v
	}
	assert.InDelta(t, 0.0, sum/4, 1e-12)
	assert.InDelta(t, 1.0, sq/4, 1e-12)
	assert.Equal(t, 0.0, Xs.At(2, 1))

	back, err := s.InverseTransform(Xs)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestStandardScaler_WithoutMean(t *testing.T) {
	s := NewStandardScaler(false, true)
	require.NoError(t, s.Fit(sampleData()))
	assert.Equal(t, []float64{0, 0}, s.Mean)
}

func TestMinMaxScaler(t *testing.T) {
	X := sampleData()
	m := NewMinMaxScaler([2]float64{-1, 1})

	Xs, err := m.FitTransform(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, -1.0 / 3, 1.0 / 3, 1}, mat.Col(nil, 0, Xs), 1e-12)
	assert.Equal(t, -1.0, Xs.At(0, 1))

	back, err := m.InverseTransform(Xs)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestScalers_Errors(t *testing.T) {
	_, err := NewStandardScalerDefault().Transform(sampleData())
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	m := NewMinMaxScalerDefault()
	require.NoError(t, m.Fit(sampleData()))
	_, err = m.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = NewMinMaxScaler([2]float64{1, 0}).Fit(sampleData())
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestScalers_Persistence(t *testing.T) {
	dir := t.TempDir()
	X := sampleData()

	s := NewStandardScalerDefault()
	require.NoError(t, s.Fit(X))
	path := filepath.Join(dir, "prep", "standard.bin")
	require.NoError(t, model.Save(path, s))

	restored, err := model.LoadAs[*StandardScaler](path)
	require.NoError(t, err)
	assert.Equal(t, s.Mean, restored.Mean)
	assert.Equal(t, s.Scale, restored.Scale)
	want, err := s.Transform(X)
	require.NoError(t, err)
	got, err := restored.Transform(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))

	mm := NewMinMaxScalerDefault()
	require.NoError(t, mm.Fit(X))
	path = filepath.Join(dir, "prep", "minmax.bin")
	require.NoError(t, model.Save(path, mm, model.WithCompression(true)))

	loaded, err := model.Load(path)
	require.NoError(t, err)
	require.IsType(t, &MinMaxScaler{}, loaded)
	assert.Equal(t, mm.FeatureRange, loaded.(*MinMaxScaler).FeatureRange)
	assert.Equal(t, mm.DataMin, loaded.(*MinMaxScaler).DataMin)
}
