package mapping

import "fmt"

// ExtractProperties finds the properties object in the shapes Elasticsearch
// and users produce:
//
//	{"properties": {...}}
//	{"mappings": {"properties": {...}}}
//	{"<index>": {"mappings": {"properties": {...}}}}   (GET _mapping)
func ExtractProperties(raw map[string]interface{}) (map[string]interface{}, error) {
	if props, ok := raw["properties"].(map[string]interface{}); ok {
		return props, nil
	}

	if mappings, ok := raw["mappings"].(map[string]interface{}); ok {
		if props, ok := mappings["properties"].(map[string]interface{}); ok {
			return props, nil
		}
		return nil, fmt.Errorf("mappings section has no properties")
	}

	if len(raw) == 1 {
		for _, v := range raw {
			if inner, ok := v.(map[string]interface{}); ok {
				if _, has := inner["mappings"]; has {
					return ExtractProperties(inner)
				}
			}
		}
	}

	return nil, fmt.Errorf("no properties found in mapping")
}
