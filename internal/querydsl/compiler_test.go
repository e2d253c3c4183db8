package querydsl

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiler_Compile(t *testing.T) {
	c := NewCompiler(NewStaticClassifier(nil, []string{"address"}, nil, ""), WithDefaultPage(0, 10))

	out, err := c.Compile(CompileRequest{
		IndexName: "customers",
		Fields: FieldValueMap{
			"status":       "active",
			"address.city": "Paris",
		},
		Operator:     And,
		Source:       []string{"id"},
		Aggregations: []AggregationSpec{{Name: "by_city", Type: AggTerms, Field: "address.city", NestedPath: "address"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "customers", out.Structure.IndexName)
	assert.JSONEq(t, `{
		"track_total_hits": true,
		"from": 0,
		"size": 10,
		"_source": ["id"],
		"query": {"bool": {"must": [
			{"bool": {"must": [{"match": {"status": "active"}}]}},
			{"nested": {"path": "address", "query": {"bool": {"must": [{"match": {"address.city": "Paris"}}]}}}}
		]}},
		"aggs": {"by_city": {"nested": {"path": "address"}, "aggs": {"by_city": {"terms": {"field": "address.city"}}}}}
	}`, toJSON(t, out.Body))
}

func TestCompiler_OrBaseSpansScopes(t *testing.T) {
	c := NewCompiler(NewStaticClassifier(nil, []string{"items"}, nil, ""))

	out, err := c.Compile(CompileRequest{
		IndexName: "customers",
		Fields: FieldValueMap{
			"name":           "Ada",
			"items.sku":      "A-1",
			"invoice#status": "paid",
		},
		Operator: Or,
	})
	require.NoError(t, err)

	assert.Equal(t, Or, out.Structure.Query.Operator)
	assert.JSONEq(t, `{
		"track_total_hits": true,
		"query": {"bool": {"minimum_should_match": 1, "should": [
			{"bool": {"minimum_should_match": 1, "should": [{"match": {"name": "Ada"}}]}},
			{"nested": {"path": "items", "query": {"bool": {"minimum_should_match": 1, "should": [{"match": {"items.sku": "A-1"}}]}}}},
			{"has_child": {"type": "invoice", "query": {"bool": {"minimum_should_match": 1, "should": [{"match": {"status": "paid"}}]}}}}
		]}}
	}`, toJSON(t, out.Body))
}

func TestCompiler_RequestPaginationWins(t *testing.T) {
	c := NewCompiler(nil, WithDefaultPage(0, 10))
	out, err := c.Compile(CompileRequest{
		Fields:     FieldValueMap{"a": "b"},
		Pagination: &Pagination{From: 30, Size: 15},
		Sort:       []SortRule{{Field: "a", Order: "desc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 30, out.Body["from"])
	assert.Equal(t, 15, out.Body["size"])
	assert.NotNil(t, out.Body["sort"])
}

func TestCompiler_NoDefaultPagination(t *testing.T) {
	out, err := NewCompiler(nil).Compile(CompileRequest{Fields: FieldValueMap{"a": "b"}})
	require.NoError(t, err)
	assert.NotContains(t, out.Body, "from")
	assert.NotContains(t, out.Body, "size")
	assert.NotContains(t, out.Body, "aggs")
	assert.NotContains(t, out.Body, "_source")
}

func TestCompiler_PropagatesErrors(t *testing.T) {
	c := NewCompiler(nil)

	_, err := c.Compile(CompileRequest{Fields: FieldValueMap{"a": map[string]interface{}{"operator": "~", "value": 1}}})
	assert.True(t, errors.Is(err, ErrUnsupportedOperator))

	_, err = c.Compile(CompileRequest{
		Fields:       FieldValueMap{"a": "b"},
		Aggregations: []AggregationSpec{{Name: "n", Type: "max", Field: "a"}},
	})
	assert.True(t, errors.Is(err, ErrUnsupportedAggregation))
}

func TestCompiler_ConcurrentUse(t *testing.T) {
	c := NewCompiler(NewStaticClassifier(nil, []string{"items"}, nil, ""))
	req := CompileRequest{
		IndexName: "orders",
		Fields: FieldValueMap{
			"items.sku": "A",
			"items.qty": 1,
			"status":    multiValue("OR", "new", "paid"),
		},
	}

	expected, err := c.Compile(req)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Compile(req)
			assert.NoError(t, err)
			assert.Equal(t, expected.Body, got.Body)
		}()
	}
	wg.Wait()
}
