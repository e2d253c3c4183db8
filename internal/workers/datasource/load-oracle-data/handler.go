package loadoracledata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"es-query-studio/internal/common/camunda"
	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/common/metrics"
	"es-query-studio/internal/gateway"
	"es-query-studio/internal/mapping"
)

const (
	TaskType = "load-oracle-data"
)

type Handler struct {
	config       *Config
	resolver     gateway.Resolver
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, resolver gateway.Resolver, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		resolver:     resolver,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job,
			errors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	camunda.CompleteJob(context.Background(), client, job, output, h.logger)
}

// Execute copies rows of an Oracle table into an index, shaping each row
// by the index's live mapping. Rows that cannot be converted are skipped;
// documents the cluster rejects are counted as failed.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}
	if strings.TrimSpace(input.IndexName) == "" {
		return nil, errors.NewInvalidRequestError("indexName is required")
	}
	if strings.TrimSpace(input.Table) == "" {
		return nil, errors.NewInvalidRequestError("table is required")
	}
	if input.Limit < 0 {
		return nil, errors.NewInvalidRequestError("limit cannot be negative")
	}

	engine, err := h.resolver.SearchEngine(ctx, input.EnvironmentID)
	if err != nil {
		return nil, errors.FromSearchEngineError(input.IndexName, err)
	}
	esMapping, err := engine.GetMapping(ctx, input.IndexName)
	if err != nil {
		return nil, errors.FromSearchEngineError(input.IndexName, err)
	}

	src, err := h.resolver.SourceDatabase(ctx, input.EnvironmentID)
	if err != nil {
		if std := errors.AsStandardError(err); std.Code != errors.ErrCodeInternal {
			return nil, std
		}
		return nil, errors.NewOracleConnectionFailedError(err)
	}

	limit := input.Limit
	if limit == 0 {
		limit = h.config.FetchLimit
	}
	rows, err := src.FetchRows(ctx, input.Owner, input.Table, limit)
	if err != nil {
		return nil, errors.NewOracleQueryFailedError(input.Table, err)
	}

	mapper, err := mapping.NewColumnMapper(rows.Columns, esMapping)
	if err != nil {
		return nil, errors.NewMappingInvalidError(err.Error()).WithMetadata("indexName", input.IndexName)
	}
	analysis := mapper.Analysis()
	if len(rows.Columns) > 0 && analysis.MappedColumns == 0 {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf(
			"no column of table %s matches a field of index %s", input.Table, input.IndexName))
	}
	if len(analysis.UnmappedColumns) > 0 {
		h.logger.Warn("columns without a matching field are dropped", map[string]interface{}{
			"table":    input.Table,
			"unmapped": analysis.UnmappedColumns,
		})
	}

	output := &Output{
		IndexName:      input.IndexName,
		Table:          input.Table,
		RowsRead:       len(rows.Data),
		ColumnAnalysis: analysis,
	}

	docs, skipped := mapper.ConvertRows(rows.Data)
	output.Skipped = skipped
	metrics.DocumentsLoaded.WithLabelValues(input.IndexName, "skipped").Add(float64(skipped))
	if len(docs) == 0 {
		h.logger.Info("nothing to load", map[string]interface{}{"table": input.Table, "rowsRead": output.RowsRead})
		return output, nil
	}

	res, err := engine.BulkIndex(ctx, input.IndexName, docs, strings.ToLower(input.IdField))
	if err != nil {
		return nil, errors.NewBulkIndexFailedError(input.IndexName, err)
	}
	output.Indexed = res.Indexed
	output.Failed = res.Failed
	output.Failures = res.Failures
	metrics.DocumentsLoaded.WithLabelValues(input.IndexName, "indexed").Add(float64(res.Indexed))
	metrics.DocumentsLoaded.WithLabelValues(input.IndexName, "failed").Add(float64(res.Failed))

	h.logger.Info("oracle data loaded", map[string]interface{}{
		"table":     input.Table,
		"indexName": input.IndexName,
		"rowsRead":  output.RowsRead,
		"indexed":   output.Indexed,
		"failed":    output.Failed,
		"skipped":   output.Skipped,
	})
	return output, nil
}
