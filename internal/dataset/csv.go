// Package dataset loads numeric CSV tables into gonum matrices.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// Dataset is a feature matrix with a single-column target.
type Dataset struct {
	X            *mat.Dense
	Y            *mat.Dense
	FeatureNames []string
	TargetName   string
}

// Options configures CSV parsing.
type Options struct {
	// HasHeader treats the first row as column names.
	HasHeader bool
	// Target is the label column name. Empty selects the last column.
	// A name requires HasHeader.
	Target string
}

// Dims returns the number of samples and features.
func (d *Dataset) Dims() (samples, features int) {
	return d.X.Dims()
}

// LoadCSV reads the CSV file at path.
func LoadCSV(path string, opts Options) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer file.Close()

	ds, err := ReadCSV(file, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", path)
	}
	return ds, nil
}

// ReadCSV parses every cell as float64. Blank lines are skipped by the
// csv reader; rows with a different number of fields are an error.
func ReadCSV(r io.Reader, opts Options) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}

	var header []string
	if opts.HasHeader && len(records) > 0 {
		header = records[0]
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, errors.NewModelError("dataset.ReadCSV", "no data rows", errors.ErrEmptyData)
	}

	cols := len(records[0])
	if cols < 2 {
		return nil, errors.NewValueError("dataset.ReadCSV", "need at least one feature column and a target column")
	}

	target := cols - 1
	if opts.Target != "" {
		if header == nil {
			return nil, errors.NewValueError("dataset.ReadCSV", "target column name requires a header row")
		}
		target = indexOf(header, opts.Target)
		if target < 0 {
			return nil, errors.NewValueError("dataset.ReadCSV", fmt.Sprintf("target column %q not found", opts.Target))
		}
	}

	rows := len(records)
	X := mat.NewDense(rows, cols-1, nil)
	y := mat.NewDense(rows, 1, nil)
	for i, record := range records {
		line := i + 1
		if header != nil {
			line++
		}
		for j, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.NewValueError("dataset.ReadCSV",
					fmt.Sprintf("invalid number %q at line %d, column %d", cell, line, j+1))
			}
			switch {
			case j == target:
				y.Set(i, 0, v)
			case j < target:
				X.Set(i, j, v)
			default:
				X.Set(i, j-1, v)
			}
		}
	}

	ds := &Dataset{X: X, Y: y}
	if header != nil {
		ds.TargetName = header[target]
		for j, name := range header {
			if j != target {
				ds.FeatureNames = append(ds.FeatureNames, name)
			}
		}
	} else {
		for j := 0; j < cols; j++ {
			if j != target {
				ds.FeatureNames = append(ds.FeatureNames, fmt.Sprintf("x%d", len(ds.FeatureNames)))
			}
		}
		ds.TargetName = "y"
	}
	return ds, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if strings.TrimSpace(n) == name {
			return i
		}
	}
	return -1
}
