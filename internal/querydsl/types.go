// Package querydsl compiles a flat field-value map into an Elasticsearch
// Query DSL body.
//
// The pipeline has four stages that can be used on their own or through
// Compiler:
//
//	FieldValueMap -> Assembler -> Normalize -> Emit
//
// BuildAggregations runs independently and its output is attached under
// "aggs" by Emit.
package querydsl

// Operator is a leaf comparison operator.
type Operator string

const (
	OpEq       Operator = "=="
	OpNe       Operator = "!="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpRange    Operator = "range"
	OpWildcard Operator = "wildcard"
	OpMatch    Operator = "match"
	OpIn       Operator = "in"
	OpBetween  Operator = "between"
	OpExists   Operator = "exists"
	OpMissing  Operator = "missing"
)

// BoolOperator combines the members of a Group.
type BoolOperator string

const (
	And BoolOperator = "AND"
	Or  BoolOperator = "OR"
	Not BoolOperator = "NOT"
)

// MultiValueType tags a field value carrying several values and a
// combination operator.
const MultiValueType = "multi_value"

// FieldValueMap maps field names to submitted values.
type FieldValueMap map[string]interface{}

// Condition is a single leaf predicate.
type Condition struct {
	Field     string      `json:"field"`
	Operator  Operator    `json:"operator"`
	Value     interface{} `json:"value,omitempty"`
	Boost     float64     `json:"boost,omitempty"`
	FieldType string      `json:"field_type,omitempty"`
}

// Group is a boolean container. At most one of NestedPath and HasChildType
// is set.
type Group struct {
	Operator     BoolOperator `json:"operator"`
	Conditions   []Condition  `json:"conditions,omitempty"`
	Groups       []Group      `json:"groups,omitempty"`
	NestedPath   string       `json:"nested_path,omitempty"`
	HasChildType string       `json:"has_child_type,omitempty"`
	Negate       bool         `json:"negate,omitempty"`
}

// Assembled is the grouped output of the Assembler.
type Assembled struct {
	Operator     BoolOperator `json:"operator,omitempty"`
	MainGroups   []Group      `json:"main_groups"`
	NestedGroups []Group      `json:"nested_groups"`
	InnerGroups  []Group      `json:"inner_groups"`
}

type Pagination struct {
	From int `json:"from"`
	Size int `json:"size"`
}

type SortRule struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// QueryStructure is the canonical intermediate form consumed by Emit.
type QueryStructure struct {
	IndexName  string      `json:"index_name"`
	Query      *Group      `json:"query,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Sort       []SortRule  `json:"sort,omitempty"`
	Source     []string    `json:"_source,omitempty"`
}

// AggregationType is a supported leaf aggregation.
type AggregationType string

const (
	AggTerms AggregationType = "terms"
	AggAvg   AggregationType = "avg"
	AggSum   AggregationType = "sum"
)

// AggregationSpec declares one aggregation, optionally scoped to a nested
// path and carrying sub-aggregations.
type AggregationSpec struct {
	Name            string            `json:"name"`
	Type            AggregationType   `json:"type"`
	Field           string            `json:"field"`
	Size            int               `json:"size,omitempty"`
	NestedPath      string            `json:"nested_path,omitempty"`
	SubAggregations []AggregationSpec `json:"sub_aggregations,omitempty"`
}
