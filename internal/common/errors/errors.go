// Package errors provides standardized error handling for the query studio
// services and its BPMN workflow integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"es-query-studio/internal/common/database"
	"es-query-studio/internal/querydsl"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Query compilation
	ErrCodeInvalidOperand         ErrorCode = "INVALID_OPERAND"
	ErrCodeUnsupportedOperator    ErrorCode = "UNSUPPORTED_OPERATOR"
	ErrCodeUnsupportedAggregation ErrorCode = "UNSUPPORTED_AGGREGATION"
	ErrCodeMissingQuery           ErrorCode = "MISSING_QUERY"
	ErrCodeInvalidFieldMap        ErrorCode = "INVALID_FIELD_MAP"
	ErrCodeInvalidRequest         ErrorCode = "INVALID_REQUEST"

	// Configuration store
	ErrCodeEnvironmentNotFound  ErrorCode = "ENVIRONMENT_NOT_FOUND"
	ErrCodeIndexConfigNotFound  ErrorCode = "INDEX_CONFIG_NOT_FOUND"
	ErrCodeMappingNotFound      ErrorCode = "MAPPING_NOT_FOUND"
	ErrCodeStoreOperationFailed ErrorCode = "STORE_OPERATION_FAILED"

	// Elasticsearch
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeIndexAlreadyExists            ErrorCode = "INDEX_ALREADY_EXISTS"
	ErrCodeMappingApplyFailed            ErrorCode = "MAPPING_APPLY_FAILED"
	ErrCodeMappingInvalid                ErrorCode = "MAPPING_INVALID"
	ErrCodeBulkIndexFailed               ErrorCode = "BULK_INDEX_FAILED"

	// Oracle
	ErrCodeOracleConnectionFailed ErrorCode = "ORACLE_CONNECTION_FAILED"
	ErrCodeOracleQueryFailed      ErrorCode = "ORACLE_QUERY_FAILED"

	ErrCodeWorkflowEngineFailed ErrorCode = "WORKFLOW_ENGINE_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// WithMetadata attaches a key/value pair and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request payload", details, false, nil)
}

func NewInvalidFieldMapError(details string) *StandardError {
	return newError(ErrCodeInvalidFieldMap, "Invalid field map", details, false, nil)
}

func NewEnvironmentNotFoundError(environmentID string) *StandardError {
	return newError(ErrCodeEnvironmentNotFound, "Environment not found",
		fmt.Sprintf("environmentId: %s", environmentID), false, nil)
}

func NewIndexConfigNotFoundError(environmentID, indexName string) *StandardError {
	return newError(ErrCodeIndexConfigNotFound, "Index configuration not found",
		fmt.Sprintf("environmentId: %s, indexName: %s", environmentID, indexName), false, nil)
}

func NewMappingNotFoundError(mappingID string) *StandardError {
	return newError(ErrCodeMappingNotFound, "Mapping record not found",
		fmt.Sprintf("mappingId: %s", mappingID), false, nil)
}

// NewStoreOperationFailedError creates a retryable configuration store error.
func NewStoreOperationFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeStoreOperationFailed, "Configuration store operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err), true, err)
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true, err)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(indexName string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("indexName: %s, error: %s", indexName, err), true, err)
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(indexName string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout",
		fmt.Sprintf("indexName: %s", indexName), true, nil)
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found",
		fmt.Sprintf("indexName: %s", indexName), false, nil)
}

func NewIndexAlreadyExistsError(indexName string) *StandardError {
	return newError(ErrCodeIndexAlreadyExists, "Elasticsearch index already exists",
		fmt.Sprintf("indexName: %s", indexName), false, nil)
}

func NewMappingApplyFailedError(indexName string, err error) *StandardError {
	return newError(ErrCodeMappingApplyFailed, "Failed to apply index mapping",
		fmt.Sprintf("indexName: %s, error: %s", indexName, err), true, err)
}

// NewMappingInvalidError reports a mapping rejected by structural validation
// or by the cluster.
func NewMappingInvalidError(details string) *StandardError {
	return newError(ErrCodeMappingInvalid, "Index mapping is invalid", details, false, nil)
}

func NewBulkIndexFailedError(indexName string, err error) *StandardError {
	return newError(ErrCodeBulkIndexFailed, "Bulk indexing failed",
		fmt.Sprintf("indexName: %s, error: %s", indexName, err), true, err)
}

func NewOracleConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeOracleConnectionFailed, "Oracle connection error", err.Error(), true, err)
}

func NewOracleQueryFailedError(table string, err error) *StandardError {
	return newError(ErrCodeOracleQueryFailed, "Oracle query error",
		fmt.Sprintf("table: %s, error: %s", table, err), true, err)
}

// NewWorkflowEngineError reports a failed Zeebe gateway call.
func NewWorkflowEngineError(operation string, err error, retryable bool) *StandardError {
	return newError(ErrCodeWorkflowEngineFailed, "Workflow engine operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err), retryable, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// FromCompileError translates query compilation failures into standard
// errors. Errors that are already standard pass through.
func FromCompileError(err error) *StandardError {
	if err == nil {
		return nil
	}

	var std *StandardError
	if stderrors.As(err, &std) {
		return std
	}

	switch {
	case stderrors.Is(err, querydsl.ErrInvalidOperand):
		return newError(ErrCodeInvalidOperand, "Invalid operand in field map", err.Error(), false, err)
	case stderrors.Is(err, querydsl.ErrUnsupportedOperator):
		return newError(ErrCodeUnsupportedOperator, "Unsupported operator", err.Error(), false, err)
	case stderrors.Is(err, querydsl.ErrUnsupportedAggregation):
		return newError(ErrCodeUnsupportedAggregation, "Unsupported aggregation type", err.Error(), false, err)
	case stderrors.Is(err, querydsl.ErrMissingQuery):
		return newError(ErrCodeMissingQuery, "Query structure has no query", err.Error(), false, err)
	case stderrors.Is(err, querydsl.ErrInvalidStructure):
		return newError(ErrCodeInvalidRequest, "Invalid request payload", err.Error(), false, err)
	}
	return NewInternalError(err)
}

// FromSearchEngineError classifies a failed cluster call against index.
// Rejections with a 4xx status are not retried.
func FromSearchEngineError(indexName string, err error) *StandardError {
	if err == nil {
		return nil
	}

	var std *StandardError
	if stderrors.As(err, &std) {
		return std
	}

	var respErr *database.ResponseError
	switch {
	case stderrors.Is(err, database.ErrIndexNotFound):
		return NewIndexNotFoundError(indexName)
	case stderrors.Is(err, database.ErrIndexExists):
		return NewIndexAlreadyExistsError(indexName)
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewSearchTimeoutError(indexName)
	case stderrors.As(err, &respErr):
		e := NewSearchQueryFailedError(indexName, err)
		e.Retryable = respErr.StatusCode >= 500
		return e.WithMetadata("status", respErr.StatusCode)
	}
	return NewElasticsearchConnectionFailedError(err)
}

// AsStandardError returns err as a StandardError, wrapping unknown errors as
// internal ones.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var std *StandardError
	if stderrors.As(err, &std) {
		return std
	}
	return NewInternalError(err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreOperationFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeMappingApplyFailed,
		ErrCodeBulkIndexFailed,
		ErrCodeOracleConnectionFailed,
		ErrCodeOracleQueryFailed,
		ErrCodeWorkflowEngineFailed:
		return 3

	case ErrCodeSearchTimeout:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorCategory":     GetErrorCategory(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "ORACLE"):
		return "ORACLE"
	case strings.HasPrefix(codeStr, "MAPPING"):
		return "MAPPING"
	case strings.HasPrefix(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") ||
		strings.HasPrefix(codeStr, "INDEX_") && code != ErrCodeIndexConfigNotFound ||
		code == ErrCodeBulkIndexFailed:
		return "SEARCH"
	case code == ErrCodeEnvironmentNotFound || code == ErrCodeIndexConfigNotFound ||
		strings.HasPrefix(codeStr, "STORE"):
		return "STORE"
	case code == ErrCodeInvalidOperand || code == ErrCodeUnsupportedOperator ||
		code == ErrCodeUnsupportedAggregation || code == ErrCodeMissingQuery ||
		code == ErrCodeInvalidFieldMap:
		return "QUERY"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps a code to the status the API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidOperand, ErrCodeUnsupportedOperator, ErrCodeUnsupportedAggregation,
		ErrCodeMissingQuery, ErrCodeInvalidFieldMap, ErrCodeInvalidRequest, ErrCodeMappingInvalid:
		return http.StatusBadRequest
	case ErrCodeEnvironmentNotFound, ErrCodeIndexConfigNotFound, ErrCodeMappingNotFound, ErrCodeIndexNotFound:
		return http.StatusNotFound
	case ErrCodeIndexAlreadyExists:
		return http.StatusConflict
	case ErrCodeSearchTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeElasticsearchConnectionFailed, ErrCodeSearchQueryFailed, ErrCodeMappingApplyFailed,
		ErrCodeBulkIndexFailed, ErrCodeOracleConnectionFailed, ErrCodeOracleQueryFailed,
		ErrCodeWorkflowEngineFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
