package model

import (
	"math"

	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// Hyperparameter values arrive from Go callers as typed values and from
// YAML configs as int/float64/string. The helpers below accept both.

// FloatParam converts a hyperparameter value to float64.
func FloatParam(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, errors.NewValidationError(name, "expected a number", v)
	}
}

// IntParam converts a hyperparameter value to int. Floats must be integral.
func IntParam(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.NewValidationError(name, "expected an integer", v)
		}
		return int(x), nil
	default:
		return 0, errors.NewValidationError(name, "expected an integer", v)
	}
}

// BoolParam converts a hyperparameter value to bool.
func BoolParam(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "expected a boolean", v)
	}
	return b, nil
}

// StringParam converts a hyperparameter value to string.
func StringParam(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(name, "expected a string", v)
	}
	return s, nil
}

// UnknownParam reports a parameter name the estimator does not have.
func UnknownParam(modelName, name string, v interface{}) error {
	return errors.NewValidationError(name, "unknown parameter for "+modelName, v)
}
