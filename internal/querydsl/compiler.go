package querydsl

import "context"

// CompileRequest is one search form submission.
type CompileRequest struct {
	IndexName    string
	Fields       FieldValueMap
	Operator     BoolOperator
	Pagination   *Pagination
	Sort         []SortRule
	Source       []string
	Aggregations []AggregationSpec
}

type Compiled struct {
	Structure *QueryStructure
	Body      map[string]interface{}
}

// Compiler runs the full pipeline. It holds no mutable state and is safe for
// concurrent use.
type Compiler struct {
	assembler         *Assembler
	defaultPagination *Pagination
}

type CompilerOption func(*Compiler)

// WithDefaultPage applies from/size when a request carries no pagination.
func WithDefaultPage(from, size int) CompilerOption {
	return func(c *Compiler) {
		c.defaultPagination = &Pagination{From: from, Size: size}
	}
}

func NewCompiler(classifier FieldClassifier, opts ...CompilerOption) *Compiler {
	c := &Compiler{assembler: NewAssembler(classifier)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compiler) Compile(req CompileRequest) (*Compiled, error) {
	assembled, err := c.assembler.Assemble(req.Fields, req.Operator)
	if err != nil {
		return nil, err
	}

	var opts []NormalizeOption
	switch {
	case req.Pagination != nil:
		opts = append(opts, WithPagination(req.Pagination.From, req.Pagination.Size))
	case c.defaultPagination != nil:
		opts = append(opts, WithPagination(c.defaultPagination.From, c.defaultPagination.Size))
	}
	if len(req.Sort) > 0 {
		opts = append(opts, WithSort(req.Sort...))
	}
	if len(req.Source) > 0 {
		opts = append(opts, WithSource(req.Source...))
	}

	qs := Normalize(req.IndexName, assembled, opts...)
	body, err := Emit(qs, req.Aggregations)
	if err != nil {
		return nil, err
	}
	return &Compiled{Structure: qs, Body: body}, nil
}

// QuestionGenerator turns a compiled query into natural-language questions.
// Implementations live outside this module.
type QuestionGenerator interface {
	Generate(ctx context.Context, index string, body map[string]interface{}) ([]string, error)
}
