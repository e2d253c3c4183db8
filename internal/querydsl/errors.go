package querydsl

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is. The typed errors below unwrap to them.
var (
	ErrInvalidOperand         = errors.New("invalid operand")
	ErrUnsupportedOperator    = errors.New("unsupported operator")
	ErrUnsupportedAggregation = errors.New("unsupported aggregation")
	ErrMissingQuery           = errors.New("missing query")
	ErrInvalidStructure       = errors.New("invalid query structure")
)

// InvalidOperandError reports a value whose shape does not fit its operator.
type InvalidOperandError struct {
	Field    string
	Operator Operator
	Reason   string
}

func (e *InvalidOperandError) Error() string {
	return fmt.Sprintf("invalid operand for %q on field %q: %s", e.Operator, e.Field, e.Reason)
}

func (e *InvalidOperandError) Unwrap() error { return ErrInvalidOperand }

type UnsupportedOperatorError struct {
	Field    string
	Operator Operator
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q on field %q", e.Operator, e.Field)
}

func (e *UnsupportedOperatorError) Unwrap() error { return ErrUnsupportedOperator }

type UnsupportedAggregationError struct {
	Name string
	Type AggregationType
}

func (e *UnsupportedAggregationError) Error() string {
	return fmt.Sprintf("unsupported aggregation type %q in %q", e.Type, e.Name)
}

func (e *UnsupportedAggregationError) Unwrap() error { return ErrUnsupportedAggregation }

type MissingQueryError struct {
	IndexName string
}

func (e *MissingQueryError) Error() string {
	if e.IndexName == "" {
		return "query structure has no query"
	}
	return fmt.Sprintf("query structure for index %q has no query", e.IndexName)
}

func (e *MissingQueryError) Unwrap() error { return ErrMissingQuery }
