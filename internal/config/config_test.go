package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlkit/model_selection"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
	"github.com/YuminosukeSato/mlkit/sklearn/linear_model"
	"github.com/YuminosukeSato/mlkit/sklearn/neighbors"
)

const tunedYAML = `
log_level: debug
data:
  path: data/houses.csv
  target: price
  test_size: 0.2
  seed: 7
preprocessing: standard
candidates:
  - name: ridge
    type: Ridge
    params:
      fit_intercept: true
    grid:
      alpha: [0.1, 1, 10]
  - name: knn
    type: KNeighborsRegressor
    params:
      n_neighbors: 3
      weights: distance
search:
  cv: 3
  n_jobs: 2
  refit: true
output:
  model_path: artifacts/best.model
  compress: true
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(tunedYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "data/houses.csv", cfg.Data.Path)
	assert.Equal(t, "price", cfg.Data.Target)
	assert.True(t, cfg.Data.Header())
	assert.Equal(t, 0.2, cfg.Data.TestSize)
	assert.Equal(t, 7, cfg.Data.Seed)
	assert.Equal(t, PreprocessStandard, cfg.Preprocessing)
	assert.True(t, cfg.Tuned())
	assert.True(t, cfg.Output.Compress)

	opts := cfg.SearchOptions()
	assert.Equal(t, 3, opts.CV)
	assert.Equal(t, 2, opts.NJobs)
	assert.True(t, opts.Refit)

	grids := cfg.Grids()
	require.Contains(t, grids, "ridge")
	assert.NotContains(t, grids, "knn")
	assert.Equal(t, model_selection.ParamGrid{"alpha": {0.1, 1, 10}}, grids["ridge"])
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
data:
  path: x.csv
  has_header: false
candidates:
  - name: ols
    type: LinearRegression
`))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.25, cfg.Data.TestSize)
	assert.False(t, cfg.Data.Header())
	assert.Equal(t, PreprocessNone, cfg.Preprocessing)
	assert.Equal(t, model_selection.DefaultCV, cfg.Search.CV)
	assert.False(t, cfg.Tuned())
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing data", "candidates: [{name: a, type: Ridge}]"},
		{"no candidates", "data: {path: x.csv}\ncandidates: []"},
		{"unknown type", "data: {path: x.csv}\ncandidates: [{name: a, type: SVR}]"},
		{"bad test size", "data: {path: x.csv, test_size: 1.5}\ncandidates: [{name: a, type: Ridge}]"},
		{"unknown field", "data: {path: x.csv}\ncandidates: [{name: a, type: Ridge}]\nextra: 1"},
		{"empty grid values", "data: {path: x.csv}\ncandidates: [{name: a, type: Ridge, grid: {alpha: []}}]"},
		{"cv too small", "data: {path: x.csv}\ncandidates: [{name: a, type: Ridge}]\nsearch: {cv: 1}"},
		{"empty document", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var valErr *errors.ValidationError
			assert.True(t, errors.As(err, &valErr), "got %v", err)
		})
	}
}

func TestParse_DuplicateNames(t *testing.T) {
	_, err := Parse([]byte("data: {path: x.csv}\ncandidates: [{name: a, type: Ridge}, {name: a, type: Lasso}]"))
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("data: [unclosed"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tunedYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Candidates, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestBuildCandidates(t *testing.T) {
	cfg, err := Parse([]byte(tunedYAML))
	require.NoError(t, err)

	candidates, err := cfg.BuildCandidates()
	require.NoError(t, err)
	assert.Equal(t, []string{"ridge", "knn"}, candidates.Names())

	require.IsType(t, &linear_model.Ridge{}, candidates[0].Estimator)
	knn := candidates[1].Estimator.(*neighbors.KNeighborsRegressor)
	assert.Equal(t, 3, knn.NNeighbors)
	assert.Equal(t, "distance", knn.Weights)
}

func TestNewEstimator(t *testing.T) {
	for _, name := range []string{"LinearRegression", "Ridge", "Lasso", "DecisionTreeRegressor", "KNeighborsRegressor"} {
		est, err := NewEstimator(name, nil)
		require.NoError(t, err, name)
		assert.NotNil(t, est)
	}

	_, err := NewEstimator("SVR", nil)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	_, err = NewEstimator("Ridge", map[string]interface{}{"alpha": "high"})
	assert.True(t, errors.As(err, &valErr))
}
