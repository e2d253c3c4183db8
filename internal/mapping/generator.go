package mapping

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

const dateFormat = "strict_date_optional_time||epoch_millis"

// Template returns the default definition for a field type.
func Template(t FieldType) map[string]interface{} {
	switch t {
	case FieldTypeText:
		return map[string]interface{}{
			"type": string(FieldTypeText),
			"fields": map[string]interface{}{
				"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256},
			},
		}
	case FieldTypeDate:
		return map[string]interface{}{"type": string(FieldTypeDate), "format": dateFormat}
	case FieldTypeNested, FieldTypeObject:
		return map[string]interface{}{"type": string(t), "properties": map[string]interface{}{}}
	}
	return map[string]interface{}{"type": string(t)}
}

// Wrap places properties under the mappings envelope expected by the
// create-index API.
func Wrap(properties map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{"properties": properties},
	}
}

type fieldNode struct {
	field    MappingField
	children []string
}

// BuildProperties assembles a properties tree from flat descriptors. Type
// templates are applied first and each field's custom Properties are merged
// on top. Unknown parents, duplicate names and parent cycles are reported
// together.
func BuildProperties(fields []MappingField) (map[string]interface{}, error) {
	var errs *multierror.Error
	nodes := make(map[string]*fieldNode)
	var order []string

	var add func(f MappingField, parent string)
	add = func(f MappingField, parent string) {
		if f.FieldName == "" {
			errs = multierror.Append(errs, fmt.Errorf("field without a name under %q", parent))
			return
		}
		if parent != "" {
			f.ParentField = parent
		}
		if _, dup := nodes[f.FieldName]; dup {
			errs = multierror.Append(errs, fmt.Errorf("duplicate field %q", f.FieldName))
			return
		}
		inline := f.NestedFields
		f.NestedFields = nil
		nodes[f.FieldName] = &fieldNode{field: f}
		order = append(order, f.FieldName)
		for _, child := range inline {
			add(child, f.FieldName)
		}
	}
	for _, f := range fields {
		add(f, "")
	}

	var roots []string
	for _, name := range order {
		n := nodes[name]
		if n.field.ParentField == "" {
			roots = append(roots, name)
			continue
		}
		parent, ok := nodes[n.field.ParentField]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("field %q references unknown parent %q", name, n.field.ParentField))
			continue
		}
		parent.children = append(parent.children, name)
	}

	if err := checkCycles(nodes, order); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	props := make(map[string]interface{}, len(roots))
	for _, name := range roots {
		def, err := render(nodes, name)
		if err != nil {
			return nil, err
		}
		props[name] = def
	}
	return props, nil
}

func render(nodes map[string]*fieldNode, name string) (map[string]interface{}, error) {
	n := nodes[name]
	t := n.field.ElasticType
	if t == "" {
		if len(n.children) == 0 {
			return nil, fmt.Errorf("field %q has no elastic_type", name)
		}
		t = FieldTypeObject
	}

	def := Template(t)
	if len(n.children) > 0 {
		props, _ := def["properties"].(map[string]interface{})
		if props == nil {
			props = make(map[string]interface{}, len(n.children))
		}
		for _, child := range n.children {
			childDef, err := render(nodes, child)
			if err != nil {
				return nil, err
			}
			props[child] = childDef
		}
		def["properties"] = props
	}

	return deepMerge(def, n.field.Properties), nil
}

// checkCycles walks parent links; a chain that revisits a field never
// reaches a root.
func checkCycles(nodes map[string]*fieldNode, order []string) error {
	for _, start := range order {
		seen := map[string]bool{start: true}
		cur := nodes[start].field.ParentField
		for cur != "" {
			if seen[cur] {
				return fmt.Errorf("parent cycle involving field %q", start)
			}
			seen[cur] = true
			next, ok := nodes[cur]
			if !ok {
				break
			}
			cur = next.field.ParentField
		}
	}
	return nil
}

// deepMerge copies src onto dst, recursing into nested objects.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]interface{})
		dstMap, dstIsMap := dst[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			dst[k] = deepMerge(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}
