package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

const housesCSV = `size, price, rooms
50, 100, 2
80, 150, 3
120, 210, 4
`

func TestReadCSV_NamedTarget(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(housesCSV), Options{HasHeader: true, Target: "price"})
	require.NoError(t, err)

	samples, features := ds.Dims()
	assert.Equal(t, 3, samples)
	assert.Equal(t, 2, features)
	assert.Equal(t, []string{"size", "rooms"}, ds.FeatureNames)
	assert.Equal(t, "price", ds.TargetName)

	assert.Equal(t, 80.0, ds.X.At(1, 0))
	assert.Equal(t, 3.0, ds.X.At(1, 1))
	assert.Equal(t, 150.0, ds.Y.At(1, 0))
}

func TestReadCSV_LastColumnDefault(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("1,2,3\n4,5,6\n"), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"x0", "x1"}, ds.FeatureNames)
	assert.Equal(t, "y", ds.TargetName)
	assert.Equal(t, 6.0, ds.Y.At(1, 0))
	assert.Equal(t, 4.0, ds.X.At(1, 0))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
	}{
		{"non numeric", "a,b\n1,x\n", Options{HasHeader: true}},
		{"header only", "a,b\n", Options{HasHeader: true}},
		{"single column", "1\n2\n", Options{}},
		{"unknown target", housesCSV, Options{HasHeader: true, Target: "area"}},
		{"target without header", "1,2\n", Options{Target: "price"}},
		{"ragged rows", "1,2\n3\n", Options{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), tt.opts)
			require.Error(t, err)
		})
	}

	_, err := ReadCSV(strings.NewReader("a,b\n1,x\n"), Options{HasHeader: true})
	var valueErr *errors.ValueError
	require.True(t, errors.As(err, &valueErr))
	assert.Contains(t, valueErr.Message, "line 2, column 2")
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "houses.csv")
	require.NoError(t, os.WriteFile(path, []byte(housesCSV), 0o644))

	ds, err := LoadCSV(path, Options{HasHeader: true})
	require.NoError(t, err)
	assert.Equal(t, "rooms", ds.TargetName)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	require.Error(t, err)
}
