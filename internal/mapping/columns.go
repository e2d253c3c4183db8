package mapping

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ESField is a field discovered in a mapping, keyed by its lowercased leaf
// name.
type ESField struct {
	Name     string `json:"name"`
	FullPath string `json:"full_path"`
	Type     string `json:"type"`
	Nested   bool   `json:"nested"`
}

type FieldStructure struct {
	RootFields   []ESField `json:"root_fields"`
	NestedFields []ESField `json:"nested_fields"`
	TotalFields  int       `json:"total_fields"`
}

type ColumnAnalysis struct {
	OracleColumns   int               `json:"oracle_columns_count"`
	ESFields        int               `json:"es_fields_count"`
	MappedColumns   int               `json:"mapped_columns"`
	UnmappedColumns []string          `json:"unmapped_columns"`
	ColumnMapping   map[string]string `json:"column_mapping"`
	Structure       FieldStructure    `json:"field_structure"`
}

// ColumnMapper converts Oracle rows into documents shaped by an index
// mapping. It is immutable once built.
type ColumnMapper struct {
	fields   map[string]ESField
	columns  map[string]string
	unmapped []string
	total    int
}

// NewColumnMapper matches columns to mapping fields, first by lowercase
// name, then ignoring underscores and hyphens.
func NewColumnMapper(columns []string, esMapping map[string]interface{}) (*ColumnMapper, error) {
	props, err := ExtractProperties(esMapping)
	if err != nil {
		return nil, err
	}

	fields := map[string]ESField{}
	extractFields(props, "", fields)

	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)

	m := &ColumnMapper{fields: fields, columns: map[string]string{}, total: len(columns)}
	for _, col := range columns {
		lower := strings.ToLower(col)
		if _, ok := fields[lower]; ok {
			m.columns[col] = lower
			continue
		}
		cleaned := squash(lower)
		matched := false
		for _, n := range names {
			if squash(n) == cleaned {
				m.columns[col] = n
				matched = true
				break
			}
		}
		if !matched {
			m.unmapped = append(m.unmapped, col)
		}
	}
	return m, nil
}

func squash(s string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(s)
}

func extractFields(props map[string]interface{}, parent string, out map[string]ESField) {
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg, ok := props[name].(map[string]interface{})
		if !ok {
			continue
		}
		path := name
		if parent != "" {
			path = parent + "." + name
		}
		t, _ := cfg["type"].(string)
		if t == "" {
			t = "unknown"
		}
		out[strings.ToLower(name)] = ESField{
			Name:     strings.ToLower(name),
			FullPath: path,
			Type:     t,
			Nested:   t == string(FieldTypeNested),
		}
		if children, ok := cfg["properties"].(map[string]interface{}); ok {
			extractFields(children, path, out)
		}
	}
}

// Analysis reports how columns were matched and how the mapping's fields
// split between root and nested scope.
func (m *ColumnMapper) Analysis() *ColumnAnalysis {
	a := &ColumnAnalysis{
		OracleColumns:   m.total,
		ESFields:        len(m.fields),
		MappedColumns:   len(m.columns),
		UnmappedColumns: append([]string(nil), m.unmapped...),
		ColumnMapping:   make(map[string]string, len(m.columns)),
	}
	for k, v := range m.columns {
		a.ColumnMapping[k] = v
	}

	names := make([]string, 0, len(m.fields))
	for n := range m.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		f := m.fields[n]
		if f.Nested || strings.Contains(f.FullPath, ".") {
			a.Structure.NestedFields = append(a.Structure.NestedFields, f)
		} else {
			a.Structure.RootFields = append(a.Structure.RootFields, f)
		}
	}
	a.Structure.TotalFields = len(m.fields)
	return a
}

// ConvertRow maps one row onto a document. Values are converted to the
// target field type; dotted paths become nested objects.
func (m *ColumnMapper) ConvertRow(row map[string]interface{}) (map[string]interface{}, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	doc := map[string]interface{}{}
	for _, col := range cols {
		target, ok := m.columns[col]
		if !ok {
			continue
		}
		f := m.fields[target]
		value := ConvertValue(row[col], f.Type)
		if strings.Contains(f.FullPath, ".") {
			if err := setPath(doc, f.FullPath, value); err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			continue
		}
		doc[target] = value
	}
	return doc, nil
}

// ConvertRows converts every row, skipping those that fail. It returns the
// converted documents and the number skipped.
func (m *ColumnMapper) ConvertRows(rows []map[string]interface{}) ([]map[string]interface{}, int) {
	out := make([]map[string]interface{}, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		doc, err := m.ConvertRow(row)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, doc)
	}
	return out, skipped
}

func setPath(doc map[string]interface{}, path string, value interface{}) error {
	keys := strings.Split(path, ".")
	cur := doc
	for _, k := range keys[:len(keys)-1] {
		next, exists := cur[k]
		if !exists {
			child := map[string]interface{}{}
			cur[k] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("path %q crosses non-object field %q", path, k)
		}
		cur = child
	}
	cur[keys[len(keys)-1]] = value
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-Jan-06",
}

// ConvertValue coerces a database value to the Go type matching an
// Elasticsearch field type. Values that cannot be converted fall back to
// their string form.
func ConvertValue(v interface{}, esType string) interface{} {
	if v == nil {
		return nil
	}

	switch esType {
	case "integer", "long", "short", "byte":
		if n, ok := toInt64(v); ok {
			return n
		}
		return fmt.Sprint(v)
	case "float", "double", "half_float", "scaled_float":
		if f, ok := toFloat64(v); ok {
			return f
		}
		return fmt.Sprint(v)
	case "boolean":
		if b, ok := toBool(v); ok {
			return b
		}
		return fmt.Sprint(v)
	case "date":
		return toDateString(v)
	case "text", "keyword":
		if t, ok := v.(time.Time); ok {
			return t.Format(time.RFC3339)
		}
		if b, ok := v.([]byte); ok {
			return string(b)
		}
		return fmt.Sprint(v)
	}
	return v
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	case []byte:
		return toInt64(string(n))
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case []byte:
		return toFloat64(string(n))
	}
	return 0, false
}

func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case int, int32, int64, float64:
		f, _ := toFloat64(b)
		return f != 0, true
	case string:
		switch strings.ToUpper(strings.TrimSpace(b)) {
		case "Y", "YES", "T", "TRUE", "1":
			return true, true
		case "N", "NO", "F", "FALSE", "0", "":
			return false, true
		}
	}
	return false, false
}

func toDateString(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.Format(time.RFC3339)
			}
		}
		return t
	}
	return fmt.Sprint(v)
}
