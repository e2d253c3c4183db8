package compilequery

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"es-query-studio/internal/common/camunda"
	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/common/metrics"
	"es-query-studio/internal/querydsl"
	"es-query-studio/internal/store"
)

const (
	TaskType = "compile-query"
)

type Handler struct {
	config       *Config
	store        store.ConfigStore
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, configStore store.ConfigStore, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		store:        configStore,
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
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

// Execute compiles the input into a search body.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}

	start := time.Now()
	output, err := h.compile(ctx, input)
	metrics.QueryCompilations.WithLabelValues(metrics.Result(err)).Inc()
	metrics.QueryCompileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	h.logger.Debug("query compiled", map[string]interface{}{
		"indexName": output.IndexName,
		"fields":    len(input.Fields),
	})
	return output, nil
}

func (h *Handler) compile(ctx context.Context, input *Input) (*Output, error) {
	if input.Structure != nil {
		return h.emitStructure(input)
	}

	if strings.TrimSpace(input.IndexName) == "" {
		return nil, errors.NewInvalidRequestError("indexName is required")
	}
	if err := h.checkPagination(input.Pagination); err != nil {
		return nil, err
	}

	classifier, err := h.classifier(ctx, input.EnvironmentID, input.IndexName)
	if err != nil {
		return nil, err
	}

	compiler := querydsl.NewCompiler(classifier, querydsl.WithDefaultPage(h.config.DefaultFrom, h.config.DefaultSize))
	compiled, err := compiler.Compile(querydsl.CompileRequest{
		IndexName:    input.IndexName,
		Fields:       input.Fields,
		Operator:     querydsl.BoolOperator(strings.ToUpper(input.Operator)),
		Pagination:   input.Pagination,
		Sort:         input.Sort,
		Source:       input.Source,
		Aggregations: input.Aggregations,
	})
	if err != nil {
		return nil, errors.FromCompileError(err)
	}

	return &Output{
		IndexName: input.IndexName,
		Query:     compiled.Body,
		Structure: compiled.Structure,
	}, nil
}

func (h *Handler) emitStructure(input *Input) (*Output, error) {
	raw := make(map[string]interface{}, len(input.Structure)+1)
	for k, v := range input.Structure {
		raw[k] = v
	}
	if idx, _ := raw["index_name"].(string); idx == "" {
		if input.IndexName == "" {
			return nil, errors.NewInvalidRequestError("indexName is required")
		}
		raw["index_name"] = input.IndexName
	}

	qs, body, err := querydsl.EmitJSON(raw, input.Aggregations)
	if err != nil {
		return nil, errors.FromCompileError(err)
	}
	if err := h.checkPagination(qs.Pagination); err != nil {
		return nil, err
	}
	return &Output{IndexName: qs.IndexName, Query: body, Structure: qs}, nil
}

func (h *Handler) checkPagination(p *querydsl.Pagination) error {
	if p == nil {
		return nil
	}
	if p.From < 0 || p.Size < 0 {
		return errors.NewInvalidRequestError("pagination values must not be negative")
	}
	if h.config.MaxSize > 0 && p.From+p.Size > h.config.MaxSize {
		return errors.NewInvalidRequestError(
			fmt.Sprintf("pagination window %d exceeds the maximum of %d", p.From+p.Size, h.config.MaxSize))
	}
	return nil
}

// classifier loads the field scopes for the index. An index without a
// stored configuration treats every field as a root field.
func (h *Handler) classifier(ctx context.Context, environmentID, indexName string) (querydsl.FieldClassifier, error) {
	cfg, err := h.store.GetIndexConfig(ctx, environmentID, indexName)
	if stderrors.Is(err, store.ErrNotFound) {
		h.logger.Debug("no index configuration, using root scope", map[string]interface{}{
			"environmentId": environmentID,
			"indexName":     indexName,
		})
		return querydsl.NewStaticClassifier(nil, nil, nil, ""), nil
	}
	if err != nil {
		return nil, errors.NewStoreOperationFailedError("get index config", err)
	}
	return cfg.Classifier(), nil
}
