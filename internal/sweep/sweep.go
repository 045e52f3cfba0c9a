// Package sweep expands a problem's parameter lists into the cartesian
// product of concrete parameter combinations.
package sweep

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/dineshadepu/wrestler/internal/errors"
)

// Binding is one parameter set to one canonical value.
type Binding struct {
	Key   string
	Value string
}

// Combination is one point in the parameter space. Bindings are ordered by
// key.
type Combination []Binding

// Map returns the combination as a key to value mapping.
func (c Combination) Map() map[string]string {
	m := make(map[string]string, len(c))
	for _, b := range c {
		m[b.Key] = b.Value
	}
	return m
}

// Get returns the value bound to key.
func (c Combination) Get(key string) (string, bool) {
	for _, b := range c {
		if b.Key == key {
			return b.Value, true
		}
	}
	return "", false
}

// String renders the combination as "k1=v1 k2=v2".
func (c Combination) String() string {
	parts := make([]string, len(c))
	for i, b := range c {
		parts[i] = b.Key + "=" + b.Value
	}
	return strings.Join(parts, " ")
}

// Canonicalize converts a raw parameter value to its canonical string.
// Strings map to themselves, integers to decimal text, floats to the
// shortest decimal text that round-trips (2.0 becomes "2"), and booleans to
// "true" or "false". Lists, tables and nil are rejected.
func Canonicalize(v any) (string, error) {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return cast.ToStringE(v)
	default:
		return "", errors.NewValidationError("parameter values must be strings, numbers or booleans").
			WithValue(fmt.Sprintf("%v (%T)", v, v))
	}
}

// Keys returns the parameter names in expansion order.
func Keys(params map[string][]any) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of combinations Expand would produce.
func Count(params map[string][]any) int {
	n := 1
	for _, values := range params {
		n *= len(values)
	}
	return n
}

// Expand returns the cartesian product of all parameter lists. Keys are
// visited in sorted order with the last key varying fastest, and each list
// keeps its declared order. An empty list for any key yields no
// combinations; no parameters at all yields a single empty combination.
func Expand(params map[string][]any) ([]Combination, error) {
	keys := Keys(params)

	columns := make([][]string, len(keys))
	for i, k := range keys {
		column := make([]string, len(params[k]))
		for j, raw := range params[k] {
			s, err := Canonicalize(raw)
			if err != nil {
				var verr *errors.ValidationError
				if errors.As(err, &verr) {
					return nil, verr.WithField(fmt.Sprintf("parameters.%s[%d]", k, j))
				}
				return nil, err
			}
			column[j] = s
		}
		columns[i] = column
	}

	total := 1
	for _, column := range columns {
		total *= len(column)
	}
	if total == 0 {
		return []Combination{}, nil
	}

	combos := make([]Combination, 0, total)
	idx := make([]int, len(keys))
	for {
		combo := make(Combination, len(keys))
		for i, k := range keys {
			combo[i] = Binding{Key: k, Value: columns[i][idx[i]]}
		}
		combos = append(combos, combo)

		// Odometer increment, last key fastest.
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(columns[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return combos, nil
		}
	}
}
