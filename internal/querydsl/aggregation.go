package querydsl

// BuildAggregations lowers specs into an Elasticsearch "aggs" map. Sibling
// specs sharing a name overwrite each other; the last one wins.
func BuildAggregations(specs []AggregationSpec) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(specs))
	for _, spec := range specs {
		agg, err := buildAggregation(spec)
		if err != nil {
			return nil, err
		}
		out[spec.Name] = agg
	}
	return out, nil
}

func buildAggregation(spec AggregationSpec) (map[string]interface{}, error) {
	if spec.NestedPath != "" {
		inner := spec
		inner.NestedPath = ""
		body, err := buildAggregation(inner)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"nested": map[string]interface{}{"path": spec.NestedPath},
			"aggs":   map[string]interface{}{spec.Name: body},
		}, nil
	}

	var result map[string]interface{}
	switch spec.Type {
	case AggTerms:
		terms := map[string]interface{}{"field": spec.Field}
		if spec.Size > 0 {
			terms["size"] = spec.Size
		}
		result = map[string]interface{}{"terms": terms}
	case AggAvg, AggSum:
		result = map[string]interface{}{string(spec.Type): map[string]interface{}{"field": spec.Field}}
	default:
		return nil, &UnsupportedAggregationError{Name: spec.Name, Type: spec.Type}
	}

	if len(spec.SubAggregations) > 0 {
		subs, err := BuildAggregations(spec.SubAggregations)
		if err != nil {
			return nil, err
		}
		result["aggs"] = subs
	}
	return result, nil
}
