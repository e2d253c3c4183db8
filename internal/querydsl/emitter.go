package querydsl

import (
	"encoding/json"
	"fmt"
)

// Emit renders qs as an Elasticsearch search body. aggs may be nil.
func Emit(qs *QueryStructure, aggs []AggregationSpec) (map[string]interface{}, error) {
	if qs == nil || qs.Query == nil {
		idx := ""
		if qs != nil {
			idx = qs.IndexName
		}
		return nil, &MissingQueryError{IndexName: idx}
	}

	query, err := EmitGroup(*qs.Query)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"track_total_hits": true,
		"query":            query,
	}

	if qs.Pagination != nil {
		body["from"] = qs.Pagination.From
		body["size"] = qs.Pagination.Size
	}

	if len(qs.Sort) > 0 {
		rules := make([]interface{}, 0, len(qs.Sort))
		for _, s := range qs.Sort {
			order := s.Order
			if order == "" {
				order = "asc"
			}
			rules = append(rules, map[string]interface{}{s.Field: map[string]interface{}{"order": order}})
		}
		body["sort"] = rules
	}

	if len(aggs) > 0 {
		built, err := BuildAggregations(aggs)
		if err != nil {
			return nil, err
		}
		body["aggs"] = built
	}

	if len(qs.Source) > 0 {
		body["_source"] = qs.Source
	}

	return body, nil
}

// EmitJSON accepts a pre-built structure decoded from JSON, for callers that
// submit the canonical form directly. The decoded structure is returned with
// the body.
func EmitJSON(raw map[string]interface{}, aggs []AggregationSpec) (*QueryStructure, map[string]interface{}, error) {
	if _, ok := raw["query"]; !ok {
		idx, _ := raw["index_name"].(string)
		return nil, nil, &MissingQueryError{IndexName: idx}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode: %v", ErrInvalidStructure, err)
	}
	var qs QueryStructure
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, nil, fmt.Errorf("%w: decode: %v", ErrInvalidStructure, err)
	}
	body, err := Emit(&qs, aggs)
	if err != nil {
		return nil, nil, err
	}
	return &qs, body, nil
}

// EmitGroup lowers one group and its sub-groups. A has_child type takes
// precedence over a nested path; negation wraps the scoped result.
func EmitGroup(g Group) (map[string]interface{}, error) {
	clauses := make([]interface{}, 0, len(g.Conditions)+len(g.Groups))

	for _, c := range g.Conditions {
		clause, err := CompileCondition(c)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	for _, sub := range g.Groups {
		clause, err := EmitGroup(sub)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	key := boolKey(g.Operator)
	boolQuery := map[string]interface{}{key: clauses}
	if key == "should" {
		boolQuery["minimum_should_match"] = 1
	}
	query := map[string]interface{}{"bool": boolQuery}

	switch {
	case g.HasChildType != "":
		query = map[string]interface{}{
			"has_child": map[string]interface{}{"type": g.HasChildType, "query": query},
		}
	case g.NestedPath != "":
		query = map[string]interface{}{
			"nested": map[string]interface{}{"path": g.NestedPath, "query": query},
		}
	}

	if g.Negate {
		query = mustNot(query)
	}
	return query, nil
}

func boolKey(op BoolOperator) string {
	switch op {
	case Or:
		return "should"
	case Not:
		return "must_not"
	}
	return "must"
}
