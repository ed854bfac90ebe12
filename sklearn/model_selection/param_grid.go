package model_selection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// ParamGrid maps parameter names to the values to try.
type ParamGrid map[string][]interface{}

// Keys returns the parameter names in sorted order.
func (g ParamGrid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of candidates.
func (g ParamGrid) Len() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n
}

// Candidates expands the grid into its cartesian product. Keys are taken
// in sorted order and the last key varies fastest.
func (g ParamGrid) Candidates() ([]map[string]interface{}, error) {
	if len(g) == 0 {
		return nil, errors.NewValidationError("param_grid", "grid must not be empty", nil)
	}
	keys := g.Keys()
	for _, k := range keys {
		if len(g[k]) == 0 {
			return nil, errors.NewValidationError(k, "parameter grid values must be a non-empty list", g[k])
		}
	}

	candidates := make([]map[string]interface{}, 0, g.Len())
	idx := make([]int, len(keys))
	for {
		c := make(map[string]interface{}, len(keys))
		for i, k := range keys {
			c[k] = g[k][idx[i]]
		}
		candidates = append(candidates, c)

		// odometer increment, last key first
		i := len(keys) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[keys[i]]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return candidates, nil
		}
	}
}

// FormatParams renders a candidate deterministically, e.g.
// "k_best__k=3, model__fit_intercept=true".
func FormatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, ", ")
}
