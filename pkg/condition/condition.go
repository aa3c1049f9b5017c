// Package condition evaluates structured boolean conditions against a
// run's working data to pick a branch. Evaluation is pure: no I/O, no side
// effects, and identical inputs always produce the same boolean.
package condition

import (
	"fmt"
	"strings"
)

// Supported comparison operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpExists      = "exists"
)

// Logic connectors for condition groups.
const (
	LogicAnd = "and"
	LogicOr  = "or"
)

// undefined is the sentinel a missing path resolves to. It is falsy for
// exists and fails every comparison against a concrete value.
type undefinedValue struct{}

var undefined = undefinedValue{}

// Condition is a single comparison on a dotted path into the context.
type Condition struct {
	Path     string `json:"path"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// Group combines conditions and nested groups with AND/OR logic.
type Group struct {
	Logic      string      `json:"logic"`
	Conditions []Condition `json:"conditions,omitempty"`
	Groups     []*Group    `json:"groups,omitempty"`
}

// Parse builds a Group from a node's JSON-shaped configuration. A malformed
// operator or logic connector is a configuration error.
func Parse(config map[string]any) (*Group, error) {
	group := &Group{Logic: LogicAnd}

	if logic, ok := config["logic"].(string); ok && logic != "" {
		if logic != LogicAnd && logic != LogicOr {
			return nil, fmt.Errorf("%w: logic %q", ErrMalformedCondition, logic)
		}

		group.Logic = logic
	}

	rawConditions, _ := config["conditions"].([]any)
	for _, raw := range rawConditions {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: condition entry is not an object", ErrMalformedCondition)
		}

		cond, err := parseCondition(entry)
		if err != nil {
			return nil, err
		}

		group.Conditions = append(group.Conditions, cond)
	}

	rawGroups, _ := config["groups"].([]any)
	for _, raw := range rawGroups {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: group entry is not an object", ErrMalformedCondition)
		}

		nested, err := Parse(entry)
		if err != nil {
			return nil, err
		}

		group.Groups = append(group.Groups, nested)
	}

	if len(group.Conditions) == 0 && len(group.Groups) == 0 {
		return nil, fmt.Errorf("%w: no conditions", ErrMalformedCondition)
	}

	return group, nil
}

func parseCondition(entry map[string]any) (Condition, error) {
	path, _ := entry["path"].(string)
	if path == "" {
		return Condition{}, fmt.Errorf("%w: missing path", ErrMalformedCondition)
	}

	operator, _ := entry["operator"].(string)

	switch operator {
	case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan, OpExists:
	default:
		return Condition{}, fmt.Errorf("%w: operator %q", ErrMalformedCondition, operator)
	}

	return Condition{
		Path:     path,
		Operator: operator,
		Value:    entry["value"],
	}, nil
}

// Evaluate resolves the group against the given data. Missing paths never
// error; they resolve to the undefined sentinel.
func (g *Group) Evaluate(data map[string]any) bool {
	if g.Logic == LogicOr {
		for _, cond := range g.Conditions {
			if cond.evaluate(data) {
				return true
			}
		}

		for _, nested := range g.Groups {
			if nested.Evaluate(data) {
				return true
			}
		}

		return false
	}

	for _, cond := range g.Conditions {
		if !cond.evaluate(data) {
			return false
		}
	}

	for _, nested := range g.Groups {
		if !nested.Evaluate(data) {
			return false
		}
	}

	return true
}

func (c Condition) evaluate(data map[string]any) bool {
	actual := Lookup(data, c.Path)

	switch c.Operator {
	case OpExists:
		return actual != undefined && actual != nil
	case OpEquals:
		return equal(actual, c.Value)
	case OpNotEquals:
		if actual == undefined {
			// Undefined fails equality against any concrete value, so
			// not-equals holds.
			return true
		}

		return !equal(actual, c.Value)
	case OpContains:
		return contains(actual, c.Value)
	case OpGreaterThan:
		cmp, ok := compare(actual, c.Value)

		return ok && cmp > 0
	case OpLessThan:
		cmp, ok := compare(actual, c.Value)

		return ok && cmp < 0
	}

	return false
}

// Lookup resolves a dotted path into nested maps. A missing segment
// resolves to the undefined sentinel.
func Lookup(data map[string]any, path string) any {
	var current any = data

	for _, segment := range strings.Split(path, ".") {
		asMap, ok := current.(map[string]any)
		if !ok {
			return undefined
		}

		current, ok = asMap[segment]
		if !ok {
			return undefined
		}
	}

	return current
}

// IsDefined reports whether a Lookup result resolved to a concrete value.
func IsDefined(value any) bool {
	return value != undefined
}

func equal(actual, expected any) bool {
	if actual == undefined {
		return false
	}

	if na, ok := asNumber(actual); ok {
		if ne, ok := asNumber(expected); ok {
			return na == ne
		}
	}

	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

func contains(actual, expected any) bool {
	switch v := actual.(type) {
	case string:
		return strings.Contains(v, fmt.Sprintf("%v", expected))
	case []any:
		for _, item := range v {
			if equal(item, expected) {
				return true
			}
		}
	}

	return false
}

// compare orders two values numerically when both convert, otherwise
// lexically when both are strings. The second return is false when the
// values are not comparable (including undefined).
func compare(actual, expected any) (int, bool) {
	if actual == undefined {
		return 0, false
	}

	if na, ok := asNumber(actual); ok {
		if ne, ok := asNumber(expected); ok {
			switch {
			case na < ne:
				return -1, true
			case na > ne:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	sa, okA := actual.(string)

	sb, okB := expected.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}

	return 0, false
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}

	return 0, false
}
