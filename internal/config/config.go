// Package config loads the YAML run configuration used by the mlkit CLI.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlkit/core/model"
	"github.com/YuminosukeSato/mlkit/evaluation"
	"github.com/YuminosukeSato/mlkit/model_selection"
	"github.com/YuminosukeSato/mlkit/pkg/errors"
	"github.com/YuminosukeSato/mlkit/sklearn/linear_model"
	"github.com/YuminosukeSato/mlkit/sklearn/neighbors"
	"github.com/YuminosukeSato/mlkit/sklearn/tree"
)

//go:embed schema.json
var schemaJSON string

// Preprocessing modes.
const (
	PreprocessNone     = "none"
	PreprocessStandard = "standard"
	PreprocessMinMax   = "minmax"
)

// Config is a complete evaluation run.
type Config struct {
	LogLevel      string      `yaml:"log_level"`
	Data          Data        `yaml:"data"`
	Preprocessing string      `yaml:"preprocessing"`
	Candidates    []Candidate `yaml:"candidates"`
	Search        Search      `yaml:"search"`
	Output        Output      `yaml:"output"`
}

// Data locates the CSV dataset and describes the train/test split.
type Data struct {
	Path string `yaml:"path"`
	// Target is the label column name; empty means the last column.
	Target    string  `yaml:"target"`
	HasHeader *bool   `yaml:"has_header"`
	TestSize  float64 `yaml:"test_size"`
	Seed      int     `yaml:"seed"`
}

// Header reports whether the first CSV row is a header (default true).
func (d Data) Header() bool {
	return d.HasHeader == nil || *d.HasHeader
}

// Candidate declares one estimator. A non-empty Grid enables tuning.
type Candidate struct {
	Name   string                   `yaml:"name"`
	Type   string                   `yaml:"type"`
	Params map[string]interface{}   `yaml:"params"`
	Grid   map[string][]interface{} `yaml:"grid"`
}

// Search mirrors evaluation.SearchOptions.
type Search struct {
	CV      int    `yaml:"cv"`
	NJobs   int    `yaml:"n_jobs"`
	Refit   bool   `yaml:"refit"`
	Verbose int    `yaml:"verbose"`
	Scoring string `yaml:"scoring"`
}

// Output lists the artifacts written after evaluation. Empty paths are skipped.
type Output struct {
	ModelPath  string `yaml:"model_path"`
	ScalerPath string `yaml:"scaler_path"`
	PlotPath   string `yaml:"plot_path"`
	Compress   bool   `yaml:"compress"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse validates YAML data against the embedded schema and decodes it.
func Parse(data []byte) (*Config, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.applyDefaults()

	seen := make(map[string]struct{}, len(cfg.Candidates))
	for _, c := range cfg.Candidates {
		if _, dup := seen[c.Name]; dup {
			return nil, errors.NewValidationError("candidates", "duplicate candidate name", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return cfg, nil
}

func validate(doc interface{}) error {
	if doc == nil {
		return errors.NewValidationError("config", "document is empty", nil)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return errors.Wrap(err, "validate config")
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.NewValidationError("config", strings.Join(msgs, "; "), nil)
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Data.TestSize == 0 {
		c.Data.TestSize = 0.25
	}
	if c.Preprocessing == "" {
		c.Preprocessing = PreprocessNone
	}
	if c.Search.CV == 0 {
		c.Search.CV = model_selection.DefaultCV
	}
}

// Tuned reports whether any candidate declares a grid.
func (c *Config) Tuned() bool {
	for _, cand := range c.Candidates {
		if len(cand.Grid) > 0 {
			return true
		}
	}
	return false
}

// BuildCandidates constructs the estimators in declaration order.
func (c *Config) BuildCandidates() (evaluation.Candidates, error) {
	candidates := make(evaluation.Candidates, 0, len(c.Candidates))
	for _, cand := range c.Candidates {
		est, err := NewEstimator(cand.Type, cand.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "candidate %q", cand.Name)
		}
		candidates = append(candidates, evaluation.Candidate{Name: cand.Name, Estimator: est})
	}
	return candidates, nil
}

// Grids returns the declared grids keyed by candidate name.
func (c *Config) Grids() evaluation.Grids {
	grids := evaluation.Grids{}
	for _, cand := range c.Candidates {
		if len(cand.Grid) > 0 {
			grids[cand.Name] = model_selection.ParamGrid(cand.Grid)
		}
	}
	return grids
}

// SearchOptions converts the search section.
func (c *Config) SearchOptions() evaluation.SearchOptions {
	return evaluation.SearchOptions{
		CV:      c.Search.CV,
		NJobs:   c.Search.NJobs,
		Verbose: c.Search.Verbose,
		Refit:   c.Search.Refit,
		Scoring: c.Search.Scoring,
	}
}

// NewEstimator creates an estimator by its scikit-learn class name and
// applies params with SetParams.
func NewEstimator(typeName string, params map[string]interface{}) (model.Estimator, error) {
	var est model.Estimator
	switch typeName {
	case "LinearRegression":
		est = linear_model.NewLinearRegression()
	case "Ridge":
		est = linear_model.NewRidge()
	case "Lasso":
		est = linear_model.NewLasso()
	case "DecisionTreeRegressor":
		est = tree.NewDecisionTreeRegressor()
	case "KNeighborsRegressor":
		est = neighbors.NewKNeighborsRegressor()
	default:
		return nil, errors.NewValidationError("type", fmt.Sprintf("unknown estimator type %q", typeName), typeName)
	}
	if len(params) > 0 {
		if err := est.SetParams(params); err != nil {
			return nil, err
		}
	}
	return est, nil
}
