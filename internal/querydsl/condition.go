package querydsl

import (
	"reflect"
)

const dateRangeFormat = "strict_date_optional_time"

var rangeBounds = []string{"gte", "lte", "gt", "lt"}

// CompileCondition lowers one condition into an Elasticsearch leaf clause.
func CompileCondition(c Condition) (map[string]interface{}, error) {
	f := c.Field

	switch c.Operator {
	case OpEq:
		return leaf("term", f, "value", c.Value, c.Boost), nil

	case OpNe:
		return mustNot(leaf("term", f, "value", c.Value, 0)), nil

	case OpGt, OpGte, OpLt, OpLte:
		return rangeClause(f, map[string]interface{}{boundKey(c.Operator): c.Value}), nil

	case OpRange:
		m, ok := toMap(c.Value)
		if !ok {
			return nil, &InvalidOperandError{Field: f, Operator: c.Operator, Reason: "expected an object with gte, lte, gt or lt"}
		}
		bounds := make(map[string]interface{}, len(rangeBounds))
		for _, k := range rangeBounds {
			if v, present := m[k]; present {
				bounds[k] = v
			}
		}
		if len(bounds) == 0 {
			return nil, &InvalidOperandError{Field: f, Operator: c.Operator, Reason: "no gte, lte, gt or lt bound given"}
		}
		return rangeClause(f, bounds), nil

	case OpWildcard:
		return leaf("wildcard", f, "value", c.Value, c.Boost), nil

	case OpMatch:
		return leaf("match", f, "query", c.Value, c.Boost), nil

	case OpIn:
		values, ok := toList(c.Value)
		if !ok {
			return nil, &InvalidOperandError{Field: f, Operator: c.Operator, Reason: "expected a list"}
		}
		return map[string]interface{}{"terms": map[string]interface{}{f: values}}, nil

	case OpBetween:
		values, ok := toList(c.Value)
		if !ok || len(values) != 2 {
			return nil, &InvalidOperandError{Field: f, Operator: c.Operator, Reason: "expected exactly two values"}
		}
		bounds := map[string]interface{}{"gte": values[0], "lte": values[1]}
		if isDateType(c.FieldType) {
			bounds["format"] = dateRangeFormat
		}
		return rangeClause(f, bounds), nil

	case OpExists:
		return existsClause(f), nil

	case OpMissing:
		return mustNot(existsClause(f)), nil
	}

	return nil, &UnsupportedOperatorError{Field: f, Operator: c.Operator}
}

// leaf builds term/match/wildcard clauses. The short form {kind: {field: v}}
// is used unless a boost forces the object form.
func leaf(kind, field, valueKey string, value interface{}, boost float64) map[string]interface{} {
	if boost == 0 {
		return map[string]interface{}{kind: map[string]interface{}{field: value}}
	}
	return map[string]interface{}{
		kind: map[string]interface{}{
			field: map[string]interface{}{valueKey: value, "boost": boost},
		},
	}
}

func rangeClause(field string, bounds map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"range": map[string]interface{}{field: bounds}}
}

func existsClause(field string) map[string]interface{} {
	return map[string]interface{}{"exists": map[string]interface{}{"field": field}}
}

func mustNot(clause map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{"must_not": []interface{}{clause}},
	}
}

func boundKey(op Operator) string {
	switch op {
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	case OpLt:
		return "lt"
	}
	return "lte"
}

func isDateType(fieldType string) bool {
	return fieldType == "date" || fieldType == "datetime"
}

// toList accepts any slice or array so callers are not limited to
// []interface{} as produced by encoding/json.
func toList(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if l, ok := v.([]interface{}); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toMap(v interface{}) (map[string]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
