// Package mapping builds, inspects and validates Elasticsearch index
// mappings, and maps Oracle rows onto them.
package mapping

// FieldType is an Elasticsearch field type.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeKeyword FieldType = "keyword"
	FieldTypeLong    FieldType = "long"
	FieldTypeInteger FieldType = "integer"
	FieldTypeShort   FieldType = "short"
	FieldTypeByte    FieldType = "byte"
	FieldTypeDouble  FieldType = "double"
	FieldTypeFloat   FieldType = "float"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
	FieldTypeObject  FieldType = "object"
	FieldTypeNested  FieldType = "nested"
	FieldTypeJoin    FieldType = "join"
)

// MappingField describes one field of a mapping. Children attach either
// inline through NestedFields or by naming their parent in ParentField.
type MappingField struct {
	FieldName    string                 `json:"field_name"`
	ElasticType  FieldType              `json:"elastic_type"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
	NestedFields []MappingField         `json:"nested_fields,omitempty"`
	ParentField  string                 `json:"parent_field,omitempty"`
}

// Column is one column of a relational table.
type Column struct {
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	Length    int    `json:"length,omitempty"`
	Precision int    `json:"precision,omitempty"`
	Scale     int    `json:"scale,omitempty"`
	Nullable  bool   `json:"nullable"`
}

type TableMetadata struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

type RelationshipKind string

const (
	RelationshipNested      RelationshipKind = "nested"
	RelationshipParentChild RelationshipKind = "parent_child"
)

// TypeOverrides maps table name to field name to Elasticsearch type.
type TypeOverrides map[string]map[string]FieldType

// Relationship links a child table to its parent. FieldTypes overrides the
// inferred type of individual columns; later relationships win.
type Relationship struct {
	ParentTable  string           `json:"parent_table"`
	ChildTable   string           `json:"child_table"`
	Kind         RelationshipKind `json:"kind"`
	ParentColumn string           `json:"parent_column,omitempty"`
	ChildColumn  string           `json:"child_column,omitempty"`
	FieldTypes   TypeOverrides    `json:"field_types,omitempty"`
}

// JoinFieldName is the join field added for parent-child relationships.
const JoinFieldName = "relation_type"

// NestedSuffix names the nested array holding a child table's rows.
const NestedSuffix = "_items"
