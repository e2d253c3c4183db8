package querydsl

import "strings"

// RelationshipMarker separates a child type from a field name, as in
// "orders#amount".
const RelationshipMarker = "#"

type ScopeKind int

const (
	ScopeRoot ScopeKind = iota
	ScopeNested
	ScopeInner
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeNested:
		return "nested"
	case ScopeInner:
		return "inner"
	}
	return "root"
}

// Scope says where a field's conditions belong. Path is the nested path or
// the has_child type; Field is the name to emit in the leaf clause.
type Scope struct {
	Kind  ScopeKind
	Path  string
	Field string
}

// FieldClassifier decides the scope of a submitted field.
type FieldClassifier interface {
	Classify(field string) Scope
}

// StaticClassifier classifies from fixed lists, typically loaded from an
// index configuration record.
type StaticClassifier struct {
	rootFields   map[string]struct{}
	nestedRoots  map[string]struct{}
	parentChild  map[string]struct{}
	relationName string
}

// NewStaticClassifier builds a classifier. rootFields pins full field names
// to root scope even when they contain a dot (plain object sub-fields).
// relationName is the has_child type used for parent-child roots; when empty
// the field root itself is used.
func NewStaticClassifier(rootFields, nestedRoots, parentChildRoots []string, relationName string) *StaticClassifier {
	return &StaticClassifier{
		rootFields:   toSet(rootFields),
		nestedRoots:  toSet(nestedRoots),
		parentChild:  toSet(parentChildRoots),
		relationName: relationName,
	}
}

func (s *StaticClassifier) Classify(field string) Scope {
	if i := strings.Index(field, RelationshipMarker); i >= 0 {
		return Scope{Kind: ScopeInner, Path: field[:i], Field: field[i+len(RelationshipMarker):]}
	}

	root := FieldRoot(field)
	if _, ok := s.parentChild[root]; ok {
		childType := s.relationName
		if childType == "" {
			childType = root
		}
		return Scope{Kind: ScopeInner, Path: childType, Field: field}
	}

	if _, ok := s.rootFields[field]; ok {
		return Scope{Kind: ScopeRoot, Field: field}
	}

	if _, ok := s.nestedRoots[root]; ok || strings.Contains(field, ".") {
		return Scope{Kind: ScopeNested, Path: root, Field: field}
	}

	return Scope{Kind: ScopeRoot, Field: field}
}

// FieldRoot returns the first dot segment of field.
func FieldRoot(field string) string {
	if i := strings.Index(field, "."); i >= 0 {
		return field[:i]
	}
	return field
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}
