package querydsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_NoGroups(t *testing.T) {
	qs := Normalize("customers", &Assembled{})
	require.NotNil(t, qs.Query)
	assert.Equal(t, And, qs.Query.Operator)
	assert.Empty(t, qs.Query.Groups)
	assert.Empty(t, qs.Query.Conditions)
	assert.Nil(t, qs.Pagination)
}

func TestNormalize_SingleMainGroupIsFlat(t *testing.T) {
	main := Group{Operator: And, Conditions: []Condition{{Field: "a", Operator: OpMatch, Value: "x"}}}
	qs := Normalize("idx", &Assembled{MainGroups: []Group{main}})

	assert.Equal(t, "idx", qs.IndexName)
	assert.Equal(t, main, *qs.Query)
}

func TestNormalize_ExtraMainGroupsNestUnderFirst(t *testing.T) {
	base := Group{Operator: And, Conditions: []Condition{{Field: "a", Operator: OpMatch, Value: "x"}}}
	orA := Group{Operator: Or, Conditions: []Condition{{Field: "b", Operator: OpIn, Value: []interface{}{1, 2}}}}
	orB := Group{Operator: Or, Conditions: []Condition{{Field: "c", Operator: OpIn, Value: []interface{}{3}}}}

	qs := Normalize("idx", &Assembled{MainGroups: []Group{base, orA, orB}})

	assert.Equal(t, base.Conditions, qs.Query.Conditions)
	assert.Equal(t, []Group{orA, orB}, qs.Query.Groups)
}

func TestNormalize_SplitsMultiConditionNestedAnd(t *testing.T) {
	nested := Group{
		Operator:   And,
		NestedPath: "items",
		Conditions: []Condition{
			{Field: "items.sku", Operator: OpMatch, Value: "A"},
			{Field: "items.qty", Operator: OpEq, Value: 2},
		},
	}

	qs := Normalize("idx", &Assembled{NestedGroups: []Group{nested}})

	require.Equal(t, And, qs.Query.Operator)
	require.Len(t, qs.Query.Groups, 2)
	for i, g := range qs.Query.Groups {
		assert.Equal(t, "items", g.NestedPath)
		assert.Equal(t, And, g.Operator)
		require.Len(t, g.Conditions, 1)
		assert.Equal(t, nested.Conditions[i], g.Conditions[0])
	}
}

func TestNormalize_KeepsOrAndSingleConditionGroups(t *testing.T) {
	or := Group{Operator: Or, NestedPath: "items", Conditions: []Condition{
		{Field: "items.sku", Operator: OpMatch, Value: "A"},
		{Field: "items.sku", Operator: OpMatch, Value: "B"},
	}}
	single := Group{Operator: And, HasChildType: "order", Conditions: []Condition{
		{Field: "status", Operator: OpMatch, Value: "paid"},
	}}

	qs := Normalize("idx", &Assembled{NestedGroups: []Group{or}, InnerGroups: []Group{single}})
	assert.Equal(t, []Group{or, single}, qs.Query.Groups)
}

func TestNormalize_SplitsInnerGroups(t *testing.T) {
	inner := Group{Operator: And, HasChildType: "order", Conditions: []Condition{
		{Field: "status", Operator: OpMatch, Value: "paid"},
		{Field: "total", Operator: OpGt, Value: 10},
	}}

	qs := Normalize("idx", &Assembled{InnerGroups: []Group{inner}})
	require.Len(t, qs.Query.Groups, 2)
	for _, g := range qs.Query.Groups {
		assert.Equal(t, "order", g.HasChildType)
		assert.Empty(t, g.NestedPath)
		assert.Len(t, g.Conditions, 1)
	}
}

func TestNormalize_OrdersRootNestedInner(t *testing.T) {
	a := &Assembled{
		MainGroups:   []Group{{Operator: And, Conditions: []Condition{{Field: "name", Operator: OpMatch, Value: "x"}}}},
		NestedGroups: []Group{{Operator: And, NestedPath: "items", Conditions: []Condition{{Field: "items.sku", Operator: OpMatch, Value: "A"}}}},
		InnerGroups:  []Group{{Operator: And, HasChildType: "order", Conditions: []Condition{{Field: "total", Operator: OpGt, Value: 1}}}},
	}

	qs := Normalize("idx", a)
	require.Len(t, qs.Query.Groups, 3)
	assert.Empty(t, qs.Query.Groups[0].NestedPath)
	assert.Equal(t, "items", qs.Query.Groups[1].NestedPath)
	assert.Equal(t, "order", qs.Query.Groups[2].HasChildType)
}

func TestNormalize_TopLevelOperator(t *testing.T) {
	root := Group{Operator: Or, Conditions: []Condition{{Field: "name", Operator: OpMatch, Value: "x"}}}
	nested := Group{Operator: And, NestedPath: "items", Conditions: []Condition{
		{Field: "items.sku", Operator: OpMatch, Value: "A"},
		{Field: "items.qty", Operator: OpEq, Value: 2},
	}}
	inner := Group{Operator: Or, HasChildType: "order", Conditions: []Condition{
		{Field: "status", Operator: OpMatch, Value: "paid"},
	}}

	tests := []struct {
		name     string
		operator BoolOperator
		wantTop  BoolOperator
		wantLen  int
	}{
		{"and base splits nested conditions", And, And, 4},
		{"or base keeps split pieces together", Or, Or, 3},
		{"not base falls back to and", Not, And, 4},
		{"unset base falls back to and", "", And, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := Normalize("idx", &Assembled{
				Operator:     tt.operator,
				MainGroups:   []Group{root},
				NestedGroups: []Group{nested},
				InnerGroups:  []Group{inner},
			})
			assert.Equal(t, tt.wantTop, qs.Query.Operator)
			require.Len(t, qs.Query.Groups, tt.wantLen)
			assert.Equal(t, root, qs.Query.Groups[0])
			assert.Equal(t, inner, qs.Query.Groups[tt.wantLen-1])
		})
	}

	qs := Normalize("idx", &Assembled{Operator: Or, MainGroups: []Group{root}, NestedGroups: []Group{nested}})
	require.Len(t, qs.Query.Groups, 2)
	split := qs.Query.Groups[1]
	assert.Equal(t, And, split.Operator)
	assert.Empty(t, split.NestedPath)
	require.Len(t, split.Groups, 2)
	for i, g := range split.Groups {
		assert.Equal(t, "items", g.NestedPath)
		assert.Equal(t, []Condition{nested.Conditions[i]}, g.Conditions)
	}
}

func TestNormalize_Options(t *testing.T) {
	qs := Normalize("idx", &Assembled{},
		WithPagination(0, 10),
		WithSort(SortRule{Field: "created", Order: "desc"}),
		WithSource("id", "name"),
	)
	assert.Equal(t, &Pagination{From: 0, Size: 10}, qs.Pagination)
	assert.Equal(t, []SortRule{{Field: "created", Order: "desc"}}, qs.Sort)
	assert.Equal(t, []string{"id", "name"}, qs.Source)

	qs = Normalize("idx", &Assembled{}, WithPagination(0, 10), WithPagination(20, 5))
	assert.Equal(t, &Pagination{From: 20, Size: 5}, qs.Pagination)
}
