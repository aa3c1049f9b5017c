package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleCondition(t *testing.T) {
	config := map[string]any{
		"conditions": []any{
			map[string]any{"path": "lead.stage", "operator": "equals", "value": "new"},
		},
	}

	group, err := Parse(config)
	require.NoError(t, err)
	assert.Equal(t, LogicAnd, group.Logic)
	require.Len(t, group.Conditions, 1)
	assert.Equal(t, "lead.stage", group.Conditions[0].Path)
}

func TestParse_MalformedOperator(t *testing.T) {
	config := map[string]any{
		"conditions": []any{
			map[string]any{"path": "lead.stage", "operator": "matches_regex", "value": ".*"},
		},
	}

	_, err := Parse(config)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedCondition)
}

func TestParse_MalformedLogic(t *testing.T) {
	config := map[string]any{
		"logic": "xor",
		"conditions": []any{
			map[string]any{"path": "lead.stage", "operator": "exists"},
		},
	}

	_, err := Parse(config)
	assert.ErrorIs(t, err, ErrMalformedCondition)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(map[string]any{})
	assert.ErrorIs(t, err, ErrMalformedCondition)
}

func TestEvaluate_Operators(t *testing.T) {
	data := map[string]any{
		"lead": map[string]any{
			"stage": "new",
			"score": float64(42),
			"tags":  []any{"inbound", "newsletter"},
			"email": "ada@example.com",
		},
	}

	tests := []struct {
		name     string
		cond     Condition
		expected bool
	}{
		{"equals match", Condition{Path: "lead.stage", Operator: OpEquals, Value: "new"}, true},
		{"equals mismatch", Condition{Path: "lead.stage", Operator: OpEquals, Value: "won"}, false},
		{"equals numeric int vs float", Condition{Path: "lead.score", Operator: OpEquals, Value: 42}, true},
		{"not equals", Condition{Path: "lead.stage", Operator: OpNotEquals, Value: "won"}, true},
		{"contains substring", Condition{Path: "lead.email", Operator: OpContains, Value: "@example"}, true},
		{"contains list member", Condition{Path: "lead.tags", Operator: OpContains, Value: "inbound"}, true},
		{"contains miss", Condition{Path: "lead.tags", Operator: OpContains, Value: "outbound"}, false},
		{"greater than", Condition{Path: "lead.score", Operator: OpGreaterThan, Value: 40}, true},
		{"less than", Condition{Path: "lead.score", Operator: OpLessThan, Value: 40}, false},
		{"exists", Condition{Path: "lead.stage", Operator: OpExists}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			group := &Group{Logic: LogicAnd, Conditions: []Condition{tc.cond}}
			assert.Equal(t, tc.expected, group.Evaluate(data))
		})
	}
}

func TestEvaluate_MissingPathNeverThrows(t *testing.T) {
	data := map[string]any{"lead": map[string]any{"stage": "new"}}

	// Missing paths are falsy for exists and fail every comparison except
	// not_equals against a concrete value.
	for _, op := range []string{OpEquals, OpContains, OpGreaterThan, OpLessThan, OpExists} {
		group := &Group{Conditions: []Condition{{Path: "lead.owner.name", Operator: op, Value: "x"}}}
		assert.False(t, group.Evaluate(data), op)
	}

	group := &Group{Conditions: []Condition{{Path: "lead.owner.name", Operator: OpNotEquals, Value: "x"}}}
	assert.True(t, group.Evaluate(data))
}

func TestEvaluate_DottedPathThroughNonMap(t *testing.T) {
	data := map[string]any{"lead": "not-a-map"}
	group := &Group{Conditions: []Condition{{Path: "lead.stage", Operator: OpExists}}}
	assert.False(t, group.Evaluate(data))
}

func TestEvaluate_AndOrGrouping(t *testing.T) {
	data := map[string]any{
		"lead": map[string]any{"stage": "new", "score": float64(10)},
	}

	group := &Group{
		Logic: LogicOr,
		Conditions: []Condition{
			{Path: "lead.score", Operator: OpGreaterThan, Value: 50},
		},
		Groups: []*Group{
			{
				Logic: LogicAnd,
				Conditions: []Condition{
					{Path: "lead.stage", Operator: OpEquals, Value: "new"},
					{Path: "lead.score", Operator: OpLessThan, Value: 20},
				},
			},
		},
	}

	assert.True(t, group.Evaluate(data))
}

func TestEvaluate_Purity(t *testing.T) {
	data := map[string]any{"lead": map[string]any{"stage": "new"}}
	group := &Group{Conditions: []Condition{{Path: "lead.stage", Operator: OpEquals, Value: "new"}}}

	first := group.Evaluate(data)
	second := group.Evaluate(data)
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]any{"lead": map[string]any{"stage": "new"}}, data)
}
