package mapping

import (
	"fmt"
	"strings"
)

// OracleToElastic infers an Elasticsearch type for an Oracle column.
func OracleToElastic(c Column) FieldType {
	dt := strings.ToUpper(strings.TrimSpace(c.DataType))
	switch {
	case dt == "NUMBER":
		if c.Scale > 0 {
			return FieldTypeDouble
		}
		return FieldTypeLong
	case dt == "INTEGER" || dt == "SMALLINT" || dt == "INT":
		return FieldTypeLong
	case dt == "FLOAT" || dt == "BINARY_FLOAT" || dt == "BINARY_DOUBLE":
		return FieldTypeDouble
	case dt == "DATE" || strings.HasPrefix(dt, "TIMESTAMP"):
		return FieldTypeDate
	case dt == "CLOB" || dt == "NCLOB" || dt == "LONG":
		return FieldTypeText
	case dt == "VARCHAR2" || dt == "NVARCHAR2" || dt == "VARCHAR":
		if c.Length > 255 {
			return FieldTypeText
		}
		return FieldTypeKeyword
	}
	return FieldTypeKeyword
}

// MergeOverrides flattens per-relationship overrides in order; a later
// relationship wins for the same table and field.
func MergeOverrides(rels []Relationship) TypeOverrides {
	out := TypeOverrides{}
	for _, rel := range rels {
		for table, fields := range rel.FieldTypes {
			key := strings.ToLower(table)
			if out[key] == nil {
				out[key] = map[string]FieldType{}
			}
			for field, t := range fields {
				out[key][strings.ToLower(field)] = t
			}
		}
	}
	return out
}

// BuildRelationalMapping derives a full mapping from relational metadata.
// Columns of rootTable sit at the root. A nested relationship from the root
// adds a "<child>_items" nested array; parent_child relationships add a join
// field and merge the child's columns into the root properties. An empty
// rootTable selects the first table that is never a child.
func BuildRelationalMapping(rootTable string, tables []TableMetadata, rels []Relationship) (map[string]interface{}, error) {
	byName := make(map[string]TableMetadata, len(tables))
	for _, t := range tables {
		byName[strings.ToLower(t.Name)] = t
	}

	root := strings.ToLower(rootTable)
	if root == "" {
		root = inferRoot(tables, rels)
	}
	rootMeta, ok := byName[root]
	if !ok {
		return nil, fmt.Errorf("root table %q not found", rootTable)
	}

	overrides := MergeOverrides(rels)
	props := tableProperties(rootMeta, overrides)

	relations := map[string][]string{}
	var relationOrder []string

	for _, rel := range rels {
		parent := strings.ToLower(rel.ParentTable)
		child := strings.ToLower(rel.ChildTable)
		if _, ok := byName[parent]; !ok {
			return nil, fmt.Errorf("relationship parent table %q not found", rel.ParentTable)
		}
		childMeta, ok := byName[child]
		if !ok {
			return nil, fmt.Errorf("relationship child table %q not found", rel.ChildTable)
		}

		switch rel.Kind {
		case RelationshipNested:
			if parent != root {
				return nil, fmt.Errorf("nested relationship %s -> %s must start at root table %q", parent, child, root)
			}
			nested := Template(FieldTypeNested)
			nested["properties"] = tableProperties(childMeta, overrides)
			props[child+NestedSuffix] = nested

		case RelationshipParentChild:
			if _, seen := relations[parent]; !seen {
				relationOrder = append(relationOrder, parent)
			}
			relations[parent] = append(relations[parent], child)
			for name, def := range tableProperties(childMeta, overrides) {
				if _, exists := props[name]; !exists {
					props[name] = def
				}
			}

		default:
			return nil, fmt.Errorf("unsupported relationship kind %q", rel.Kind)
		}
	}

	if len(relations) > 0 {
		rel := make(map[string]interface{}, len(relations))
		for _, parent := range relationOrder {
			rel[parent] = relations[parent]
		}
		props[JoinFieldName] = map[string]interface{}{
			"type":      string(FieldTypeJoin),
			"relations": rel,
		}
	}

	return Wrap(props), nil
}

func inferRoot(tables []TableMetadata, rels []Relationship) string {
	children := map[string]bool{}
	for _, r := range rels {
		children[strings.ToLower(r.ChildTable)] = true
	}
	for _, t := range tables {
		if name := strings.ToLower(t.Name); !children[name] {
			return name
		}
	}
	return ""
}

func tableProperties(t TableMetadata, overrides TypeOverrides) map[string]interface{} {
	tableOverrides := overrides[strings.ToLower(t.Name)]
	props := make(map[string]interface{}, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.ToLower(c.Name)
		ft := OracleToElastic(c)
		if o, ok := tableOverrides[name]; ok && o != "" {
			ft = o
		}
		props[name] = Template(ft)
	}
	return props
}
