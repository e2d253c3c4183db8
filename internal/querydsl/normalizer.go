package querydsl

// NormalizeOption attaches request-level settings to the structure.
type NormalizeOption func(*QueryStructure)

func WithPagination(from, size int) NormalizeOption {
	return func(qs *QueryStructure) {
		qs.Pagination = &Pagination{From: from, Size: size}
	}
}

func WithSort(rules ...SortRule) NormalizeOption {
	return func(qs *QueryStructure) {
		qs.Sort = append(qs.Sort, rules...)
	}
}

func WithSource(fields ...string) NormalizeOption {
	return func(qs *QueryStructure) {
		qs.Source = append(qs.Source, fields...)
	}
}

// Normalize turns assembled groups into the canonical structure.
//
// Main groups collapse into one root group: the first one holds the rest
// under Groups. Nested and parent-child AND groups with more than one
// condition are split into single-condition groups sharing the same scope,
// since one nested or has_child wrapper would require every condition to
// hold on the same inner document. Groups are ordered root, nested, inner.
//
// A lone group becomes the query itself; otherwise the groups are combined
// under the assembled operator when it is OR, and under AND in every other
// case. Under OR the pieces of one split group stay together in an AND group.
func Normalize(index string, a *Assembled, opts ...NormalizeOption) *QueryStructure {
	qs := &QueryStructure{IndexName: index}

	top := And
	var groups []Group
	if a != nil {
		if a.Operator == Or {
			top = Or
		}
		if root, ok := collapseMain(a.MainGroups); ok {
			groups = append(groups, root)
		}
		groups = append(groups, splitScoped(a.NestedGroups, top)...)
		groups = append(groups, splitScoped(a.InnerGroups, top)...)
	}

	switch len(groups) {
	case 0:
		qs.Query = &Group{Operator: And}
	case 1:
		qs.Query = &groups[0]
	default:
		qs.Query = &Group{Operator: top, Groups: groups}
	}

	for _, opt := range opts {
		opt(qs)
	}
	return qs
}

func collapseMain(main []Group) (Group, bool) {
	if len(main) == 0 {
		return Group{}, false
	}
	root := main[0]
	if len(main) > 1 {
		root.Groups = append(append([]Group(nil), root.Groups...), main[1:]...)
	}
	return root, true
}

func splitScoped(in []Group, top BoolOperator) []Group {
	var out []Group
	for _, g := range in {
		if g.Operator != And || len(g.Conditions) <= 1 || len(g.Groups) > 0 {
			out = append(out, g)
			continue
		}
		pieces := make([]Group, 0, len(g.Conditions))
		for _, c := range g.Conditions {
			pieces = append(pieces, Group{
				Operator:     And,
				Conditions:   []Condition{c},
				NestedPath:   g.NestedPath,
				HasChildType: g.HasChildType,
				Negate:       g.Negate,
			})
		}
		if top == And {
			out = append(out, pieces...)
			continue
		}
		out = append(out, Group{Operator: And, Groups: pieces})
	}
	return out
}
