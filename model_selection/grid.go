package model_selection

import (
	"sort"

	"github.com/YuminosukeSato/mlkit/pkg/errors"
)

// ParamGrid maps a hyperparameter name to its candidate values.
type ParamGrid map[string][]interface{}

// Names returns the parameter names in sorted order.
func (g ParamGrid) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the number of combinations.
func (g ParamGrid) Size() int {
	size := 1
	for _, values := range g {
		size *= len(values)
	}
	return size
}

// Validate rejects parameters with no candidate values.
func (g ParamGrid) Validate() error {
	for _, name := range g.Names() {
		if len(g[name]) == 0 {
			return errors.NewValidationError(name, "parameter grid has no values", g[name])
		}
	}
	return nil
}

// Combinations enumerates the cartesian product of the grid. Names are taken
// in sorted order and the last name varies fastest, so the enumeration is
// deterministic. An empty grid yields a single empty combination.
func (g ParamGrid) Combinations() []map[string]interface{} {
	names := g.Names()
	combos := []map[string]interface{}{{}}

	for _, name := range names {
		values := g[name]
		next := make([]map[string]interface{}, 0, len(combos)*len(values))
		for _, base := range combos {
			for _, v := range values {
				combo := make(map[string]interface{}, len(base)+1)
				for k, bv := range base {
					combo[k] = bv
				}
				combo[name] = v
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}
