package querydsl

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Assembler partitions a field-value map into root, nested and parent-child
// groups.
type Assembler struct {
	classifier FieldClassifier
}

// NewAssembler returns an Assembler using c. A nil classifier treats every
// dotted field as nested and everything else as root scoped.
func NewAssembler(c FieldClassifier) *Assembler {
	if c == nil {
		c = NewStaticClassifier(nil, nil, nil, "")
	}
	return &Assembler{classifier: c}
}

type groupKey struct {
	kind ScopeKind
	path string
	op   BoolOperator
}

// resolved is one field's contribution before placement.
type resolved struct {
	conditions []Condition
	op         BoolOperator
	multiValue bool
}

// Assemble groups the fields of m. Keys are processed in sorted order so the
// result does not depend on map iteration order. Root-scoped fields share one
// group combined with base; each multi-value field whose operator is OR, or
// differs from base, gets a standalone root group. Nested and parent-child
// conditions merge per (scope, path, operator).
//
// Errors for individual fields are collected and returned together.
func (a *Assembler) Assemble(m FieldValueMap, base BoolOperator) (*Assembled, error) {
	base = normalizeBool(base, And)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs *multierror.Error
	main := Group{Operator: base}
	var standalone []Group
	var nested, inner []Group
	index := make(map[groupKey]int)

	for _, field := range keys {
		value := m[field]
		if field == "" {
			errs = multierror.Append(errs, &InvalidOperandError{Reason: "empty field name"})
			continue
		}
		if value == nil {
			continue
		}

		scope := a.classifier.Classify(field)
		if scope.Kind == ScopeInner && (scope.Path == "" || scope.Field == "") {
			errs = multierror.Append(errs, &InvalidOperandError{Field: field, Reason: "relationship needs both a child type and a field"})
			continue
		}
		r, err := resolveField(scope.Field, value, base)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if len(r.conditions) == 0 {
			continue
		}

		switch scope.Kind {
		case ScopeRoot:
			if r.multiValue && (r.op == Or || r.op != base) {
				standalone = append(standalone, Group{Operator: r.op, Conditions: r.conditions})
				continue
			}
			main.Conditions = append(main.Conditions, r.conditions...)

		case ScopeNested, ScopeInner:
			key := groupKey{kind: scope.Kind, path: scope.Path, op: r.op}
			target := &nested
			if scope.Kind == ScopeInner {
				target = &inner
			}
			if i, ok := index[key]; ok {
				(*target)[i].Conditions = append((*target)[i].Conditions, r.conditions...)
				continue
			}
			g := Group{Operator: r.op, Conditions: r.conditions}
			if scope.Kind == ScopeInner {
				g.HasChildType = scope.Path
			} else {
				g.NestedPath = scope.Path
			}
			index[key] = len(*target)
			*target = append(*target, g)
		}
	}

	if errs != nil {
		if len(errs.Errors) == 1 {
			return nil, errs.Errors[0]
		}
		return nil, errs.ErrorOrNil()
	}

	out := &Assembled{Operator: base, NestedGroups: nested, InnerGroups: inner}
	// The base group leads whenever anything must nest under it, even if it
	// holds no conditions of its own.
	if len(main.Conditions) > 0 || len(standalone) > 1 {
		out.MainGroups = append([]Group{main}, standalone...)
	} else {
		out.MainGroups = standalone
	}
	return out, nil
}

func resolveField(field string, value interface{}, base BoolOperator) (resolved, error) {
	if obj, ok := toMap(value); ok {
		if t, _ := obj["type"].(string); t == MultiValueType || isValuesList(obj) {
			return resolveMultiValue(field, obj), nil
		}
		if op, ok := obj["operator"].(string); ok {
			c := Condition{
				Field:     field,
				Operator:  Operator(op),
				Value:     obj["value"],
				Boost:     toFloat(obj["boost"]),
				FieldType: stringValue(obj["field_type"]),
			}
			if _, err := CompileCondition(c); err != nil {
				return resolved{}, err
			}
			return resolved{conditions: []Condition{c}, op: base}, nil
		}
	}

	c := Condition{Field: field, Operator: ShapeOperator(value), Value: value}
	if c.Operator == OpExists || c.Operator == OpMissing {
		c.Value = nil
	}
	if _, err := CompileCondition(c); err != nil {
		return resolved{}, err
	}
	return resolved{conditions: []Condition{c}, op: base}, nil
}

// isValuesList reports whether obj is an untagged {operator: AND|OR, values}
// map.
func isValuesList(obj map[string]interface{}) bool {
	if _, ok := obj["value"]; ok {
		return false
	}
	if _, ok := toList(obj["values"]); !ok {
		return false
	}
	switch BoolOperator(strings.ToUpper(stringValue(obj["operator"]))) {
	case And, Or:
		return true
	}
	return false
}

// resolveMultiValue expands {type: multi_value, operator, values}. AND gives
// one match per value, OR a single in. Unknown operators fall back to AND;
// a missing or malformed values list yields nothing.
func resolveMultiValue(field string, obj map[string]interface{}) resolved {
	op := normalizeBool(BoolOperator(strings.ToUpper(stringValue(obj["operator"]))), And)
	if op == Not {
		op = And
	}

	values, _ := toList(obj["values"])
	r := resolved{op: op, multiValue: true}
	if len(values) == 0 {
		return r
	}

	if op == Or {
		r.conditions = []Condition{{Field: field, Operator: OpIn, Value: values}}
		return r
	}
	for _, v := range values {
		r.conditions = append(r.conditions, Condition{Field: field, Operator: OpMatch, Value: v})
	}
	return r
}

// ShapeOperator picks the leaf operator implied by a plain value: lists
// become in, objects with bounds become range, objects with an exists flag
// become exists or missing, strings become match and numbers or booleans
// become exact equality.
func ShapeOperator(value interface{}) Operator {
	if _, ok := value.(string); ok {
		return OpMatch
	}
	if _, ok := toList(value); ok {
		return OpIn
	}
	if obj, ok := toMap(value); ok {
		if flag, present := obj["exists"]; present {
			if b, isBool := flag.(bool); isBool && !b {
				return OpMissing
			}
			return OpExists
		}
		return OpRange
	}

	switch value.(type) {
	case bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return OpEq
	}
	return OpMatch
}

func normalizeBool(op BoolOperator, fallback BoolOperator) BoolOperator {
	switch BoolOperator(strings.ToUpper(string(op))) {
	case And:
		return And
	case Or:
		return Or
	case Not:
		return Not
	}
	return fallback
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
