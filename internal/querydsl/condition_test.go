package querydsl

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestCompileCondition(t *testing.T) {
	tests := []struct {
		name      string
		condition Condition
		expected  string
	}{
		{
			name:      "equality uses term",
			condition: Condition{Field: "status", Operator: OpEq, Value: "active"},
			expected:  `{"term":{"status":"active"}}`,
		},
		{
			name:      "equality with boost",
			condition: Condition{Field: "status", Operator: OpEq, Value: "active", Boost: 2},
			expected:  `{"term":{"status":{"value":"active","boost":2}}}`,
		},
		{
			name:      "not equal wraps must_not",
			condition: Condition{Field: "status", Operator: OpNe, Value: "closed"},
			expected:  `{"bool":{"must_not":[{"term":{"status":"closed"}}]}}`,
		},
		{
			name:      "greater than",
			condition: Condition{Field: "age", Operator: OpGt, Value: 18},
			expected:  `{"range":{"age":{"gt":18}}}`,
		},
		{
			name:      "greater or equal",
			condition: Condition{Field: "age", Operator: OpGte, Value: 18},
			expected:  `{"range":{"age":{"gte":18}}}`,
		},
		{
			name:      "less than",
			condition: Condition{Field: "age", Operator: OpLt, Value: 65},
			expected:  `{"range":{"age":{"lt":65}}}`,
		},
		{
			name:      "less or equal",
			condition: Condition{Field: "age", Operator: OpLte, Value: 65},
			expected:  `{"range":{"age":{"lte":65}}}`,
		},
		{
			name:      "range copies present bounds only",
			condition: Condition{Field: "price", Operator: OpRange, Value: map[string]interface{}{"gte": 10, "lt": 99, "ignored": true}},
			expected:  `{"range":{"price":{"gte":10,"lt":99}}}`,
		},
		{
			name:      "range on a date field keeps bounds only",
			condition: Condition{Field: "created", Operator: OpRange, Value: map[string]interface{}{"gte": "2024-01-01", "format": "yyyy"}, FieldType: "date"},
			expected:  `{"range":{"created":{"gte":"2024-01-01"}}}`,
		},
		{
			name:      "wildcard",
			condition: Condition{Field: "name", Operator: OpWildcard, Value: "jo*"},
			expected:  `{"wildcard":{"name":"jo*"}}`,
		},
		{
			name:      "wildcard with boost",
			condition: Condition{Field: "name", Operator: OpWildcard, Value: "jo*", Boost: 1.5},
			expected:  `{"wildcard":{"name":{"value":"jo*","boost":1.5}}}`,
		},
		{
			name:      "match",
			condition: Condition{Field: "city", Operator: OpMatch, Value: "Paris"},
			expected:  `{"match":{"city":"Paris"}}`,
		},
		{
			name:      "match with boost",
			condition: Condition{Field: "city", Operator: OpMatch, Value: "Paris", Boost: 3},
			expected:  `{"match":{"city":{"query":"Paris","boost":3}}}`,
		},
		{
			name:      "in accepts typed slices",
			condition: Condition{Field: "id", Operator: OpIn, Value: []int{1, 2, 3}},
			expected:  `{"terms":{"id":[1,2,3]}}`,
		},
		{
			name:      "between",
			condition: Condition{Field: "score", Operator: OpBetween, Value: []interface{}{10, 20}},
			expected:  `{"range":{"score":{"gte":10,"lte":20}}}`,
		},
		{
			name:      "between on a date field adds format",
			condition: Condition{Field: "created", Operator: OpBetween, Value: []string{"2024-01-01", "2024-12-31"}, FieldType: "date"},
			expected:  `{"range":{"created":{"gte":"2024-01-01","lte":"2024-12-31","format":"strict_date_optional_time"}}}`,
		},
		{
			name:      "between on a datetime field adds format",
			condition: Condition{Field: "created", Operator: OpBetween, Value: []string{"a", "b"}, FieldType: "datetime"},
			expected:  `{"range":{"created":{"gte":"a","lte":"b","format":"strict_date_optional_time"}}}`,
		},
		{
			name:      "exists",
			condition: Condition{Field: "email", Operator: OpExists},
			expected:  `{"exists":{"field":"email"}}`,
		},
		{
			name:      "missing",
			condition: Condition{Field: "email", Operator: OpMissing},
			expected:  `{"bool":{"must_not":[{"exists":{"field":"email"}}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, err := CompileCondition(tt.condition)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, toJSON(t, clause))
		})
	}
}

func TestCompileCondition_InvalidOperands(t *testing.T) {
	tests := []struct {
		name      string
		condition Condition
	}{
		{"range without object", Condition{Field: "p", Operator: OpRange, Value: 10}},
		{"range without bounds", Condition{Field: "p", Operator: OpRange, Value: map[string]interface{}{"foo": 1}}},
		{"in without list", Condition{Field: "p", Operator: OpIn, Value: "a"}},
		{"between with one value", Condition{Field: "p", Operator: OpBetween, Value: []interface{}{1}}},
		{"between with three values", Condition{Field: "p", Operator: OpBetween, Value: []interface{}{1, 2, 3}}},
		{"between with scalar", Condition{Field: "p", Operator: OpBetween, Value: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileCondition(tt.condition)
			require.Error(t, err)

			var operandErr *InvalidOperandError
			require.True(t, errors.As(err, &operandErr))
			assert.Equal(t, "p", operandErr.Field)
			assert.True(t, errors.Is(err, ErrInvalidOperand))
		})
	}
}

func TestCompileCondition_UnsupportedOperator(t *testing.T) {
	_, err := CompileCondition(Condition{Field: "name", Operator: "fuzzy", Value: "x"})
	require.Error(t, err)

	var opErr *UnsupportedOperatorError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, Operator("fuzzy"), opErr.Operator)
	assert.Contains(t, err.Error(), "fuzzy")
	assert.True(t, errors.Is(err, ErrUnsupportedOperator))
}
