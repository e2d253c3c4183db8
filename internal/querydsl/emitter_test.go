package querydsl

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectShould walks a rendered body and returns every bool object that has
// a should clause.
func collectShould(v interface{}, out *[]map[string]interface{}) {
	switch node := v.(type) {
	case map[string]interface{}:
		if b, ok := node["bool"].(map[string]interface{}); ok {
			if _, has := b["should"]; has {
				*out = append(*out, b)
			}
		}
		for _, child := range node {
			collectShould(child, out)
		}
	case []interface{}:
		for _, child := range node {
			collectShould(child, out)
		}
	}
}

func TestEmit_ScenarioRootFields(t *testing.T) {
	a, err := NewAssembler(nil).Assemble(FieldValueMap{
		"category": "electronics",
		"price":    map[string]interface{}{"gte": 10, "lte": 100},
	}, And)
	require.NoError(t, err)

	body, err := Emit(Normalize("products", a), nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"query": {"bool": {"must": [
			{"match": {"category": "electronics"}},
			{"range": {"price": {"gte": 10, "lte": 100}}}
		]}},
		"track_total_hits": true
	}`, toJSON(t, body))
}

func TestEmit_SingleFieldRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{"string becomes match", "blue", `{"bool":{"must":[{"match":{"color":"blue"}}]}}`},
		{"number becomes term", 7, `{"bool":{"must":[{"term":{"color":7}}]}}`},
		{"bool becomes term", true, `{"bool":{"must":[{"term":{"color":true}}]}}`},
		{"range object becomes range", map[string]interface{}{"lt": 3}, `{"bool":{"must":[{"range":{"color":{"lt":3}}}]}}`},
		{"list becomes terms", []interface{}{"a", "b"}, `{"bool":{"must":[{"terms":{"color":["a","b"]}}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAssembler(NewStaticClassifier(nil, nil, nil, "")).Assemble(FieldValueMap{"color": tt.value}, And)
			require.NoError(t, err)
			body, err := Emit(Normalize("idx", a), nil)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, toJSON(t, body["query"]))
		})
	}
}

func TestEmit_MultiValue(t *testing.T) {
	a, err := NewAssembler(nil).Assemble(FieldValueMap{"tags": multiValue("AND", "a", "b")}, And)
	require.NoError(t, err)
	body, err := Emit(Normalize("idx", a), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"must":[{"match":{"tags":"a"}},{"match":{"tags":"b"}}]}}`, toJSON(t, body["query"]))

	a, err = NewAssembler(nil).Assemble(FieldValueMap{"tags": multiValue("OR", "a", "b")}, And)
	require.NoError(t, err)
	body, err = Emit(Normalize("idx", a), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"should":[{"terms":{"tags":["a","b"]}}],"minimum_should_match":1}}`, toJSON(t, body["query"]))
}

func TestEmit_NestedAndSplitting(t *testing.T) {
	c := NewStaticClassifier(nil, []string{"items"}, nil, "")
	a, err := NewAssembler(c).Assemble(FieldValueMap{
		"items.sku": "A-1",
		"items.qty": 2,
	}, And)
	require.NoError(t, err)

	body, err := Emit(Normalize("orders", a), nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{"bool":{"must":[
		{"nested":{"path":"items","query":{"bool":{"must":[{"term":{"items.qty":2}}]}}}},
		{"nested":{"path":"items","query":{"bool":{"must":[{"match":{"items.sku":"A-1"}}]}}}}
	]}}`, toJSON(t, body["query"]))
}

func TestEmit_HasChild(t *testing.T) {
	c := NewStaticClassifier(nil, nil, []string{"orders"}, "order")
	a, err := NewAssembler(c).Assemble(FieldValueMap{
		"name":          "alice",
		"orders.status": "paid",
	}, And)
	require.NoError(t, err)

	body, err := Emit(Normalize("customers", a), nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{"bool":{"must":[
		{"bool":{"must":[{"match":{"name":"alice"}}]}},
		{"has_child":{"type":"order","query":{"bool":{"must":[{"match":{"orders.status":"paid"}}]}}}}
	]}}`, toJSON(t, body["query"]))
}

func TestEmitGroup_NegationWrapsAfterScoping(t *testing.T) {
	g := Group{
		Operator:   And,
		NestedPath: "items",
		Negate:     true,
		Conditions: []Condition{{Field: "items.sku", Operator: OpMatch, Value: "A"}},
	}

	q, err := EmitGroup(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"must_not":[
		{"nested":{"path":"items","query":{"bool":{"must":[{"match":{"items.sku":"A"}}]}}}}
	]}}`, toJSON(t, q))
}

func TestEmitGroup_HasChildWinsOverNested(t *testing.T) {
	q, err := EmitGroup(Group{
		Operator:     Or,
		NestedPath:   "items",
		HasChildType: "order",
		Conditions:   []Condition{{Field: "total", Operator: OpGt, Value: 5}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"has_child":{"type":"order","query":{"bool":{
		"should":[{"range":{"total":{"gt":5}}}],"minimum_should_match":1
	}}}}`, toJSON(t, q))
}

func TestEmitGroup_Operators(t *testing.T) {
	cond := []Condition{{Field: "a", Operator: OpExists}}

	q, err := EmitGroup(Group{Operator: Not, Conditions: cond})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"must_not":[{"exists":{"field":"a"}}]}}`, toJSON(t, q))

	q, err = EmitGroup(Group{Operator: "XOR", Conditions: cond})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"must":[{"exists":{"field":"a"}}]}}`, toJSON(t, q))
}

func TestEmit_EveryShouldCarriesMinimumShouldMatch(t *testing.T) {
	c := NewStaticClassifier(nil, []string{"items"}, []string{"orders"}, "")
	a, err := NewAssembler(c).Assemble(FieldValueMap{
		"name":          "x",
		"color":         multiValue("OR", "red", "blue"),
		"size":          multiValue("OR", "s"),
		"items.sku":     multiValue("OR", "A", "B"),
		"orders.status": multiValue("OR", "paid", "sent"),
	}, Or)
	require.NoError(t, err)

	body, err := Emit(Normalize("idx", a), nil)
	require.NoError(t, err)

	var shoulds []map[string]interface{}
	collectShould(body, &shoulds)
	require.NotEmpty(t, shoulds)
	for _, b := range shoulds {
		assert.Equal(t, 1, b["minimum_should_match"])
	}
}

func TestEmit_TopLevelFields(t *testing.T) {
	qs := Normalize("idx", &Assembled{},
		WithPagination(10, 25),
		WithSort(SortRule{Field: "created"}),
		WithSource("id"),
	)
	body, err := Emit(qs, []AggregationSpec{{Name: "total", Type: AggSum, Field: "amount"}})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"track_total_hits": true,
		"query": {"bool": {"must": []}},
		"from": 10,
		"size": 25,
		"sort": [{"created": {"order": "asc"}}],
		"_source": ["id"],
		"aggs": {"total": {"sum": {"field": "amount"}}}
	}`, toJSON(t, body))
}

func TestEmit_Errors(t *testing.T) {
	_, err := Emit(&QueryStructure{IndexName: "idx"}, nil)
	var missing *MissingQueryError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "idx", missing.IndexName)

	_, err = Emit(nil, nil)
	assert.True(t, errors.Is(err, ErrMissingQuery))

	_, err = Emit(Normalize("idx", &Assembled{}), []AggregationSpec{{Name: "x", Type: "median", Field: "f"}})
	assert.True(t, errors.Is(err, ErrUnsupportedAggregation))

	_, err = Emit(&QueryStructure{Query: &Group{Operator: And, Conditions: []Condition{{Field: "f", Operator: OpIn, Value: 1}}}}, nil)
	assert.True(t, errors.Is(err, ErrInvalidOperand))
}

func TestEmitJSON(t *testing.T) {
	raw := map[string]interface{}{
		"index_name": "idx",
		"query": map[string]interface{}{
			"operator": "OR",
			"conditions": []interface{}{
				map[string]interface{}{"field": "a", "operator": "==", "value": "x"},
			},
			"groups": []interface{}{
				map[string]interface{}{
					"operator":    "AND",
					"nested_path": "items",
					"conditions": []interface{}{
						map[string]interface{}{"field": "items.qty", "operator": ">", "value": 1},
					},
				},
			},
		},
		"pagination": map[string]interface{}{"from": 0, "size": 5},
	}

	qs, body, err := EmitJSON(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "idx", qs.IndexName)
	assert.Equal(t, &Pagination{From: 0, Size: 5}, qs.Pagination)
	assert.JSONEq(t, `{
		"track_total_hits": true,
		"from": 0,
		"size": 5,
		"query": {"bool": {"should": [
			{"term": {"a": "x"}},
			{"nested": {"path": "items", "query": {"bool": {"must": [{"range": {"items.qty": {"gt": 1}}}]}}}}
		], "minimum_should_match": 1}}
	}`, toJSON(t, body))

	_, _, err = EmitJSON(map[string]interface{}{"index_name": "idx"}, nil)
	var missing *MissingQueryError
	require.True(t, errors.As(err, &missing))
	assert.True(t, strings.Contains(err.Error(), "idx"))

	_, _, err = EmitJSON(map[string]interface{}{"query": "not a group"}, nil)
	assert.True(t, errors.Is(err, ErrInvalidStructure))
}
