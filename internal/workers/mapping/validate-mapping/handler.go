package validatemapping

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"es-query-studio/internal/common/camunda"
	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/gateway"
	"es-query-studio/internal/mapping"
)

const (
	TaskType = "validate-mapping"

	SourceInline  = "inline"
	SourceCluster = "cluster"
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

// Execute reports on the mapping. An invalid mapping is a result, not an
// error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}

	body := input.Mapping
	source := SourceInline
	if len(body) == 0 {
		if input.IndexName == "" {
			return nil, errors.NewInvalidRequestError("either mapping or indexName is required")
		}
		live, err := h.liveMapping(ctx, input.EnvironmentID, input.IndexName)
		if err != nil {
			return nil, err
		}
		body = live
		source = SourceCluster
	}

	report := mapping.Validate(body)
	h.logger.Info("mapping validated", map[string]interface{}{
		"indexName": input.IndexName,
		"source":    source,
		"valid":     report.Valid,
		"score":     report.Score,
	})
	return &Output{ValidationReport: report, Source: source}, nil
}

// liveMapping reads the index mapping. The response is keyed by concrete
// index name, which differs from the request when an alias is used.
func (h *Handler) liveMapping(ctx context.Context, environmentID, index string) (map[string]interface{}, error) {
	engine, err := h.resolver.SearchEngine(ctx, environmentID)
	if err != nil {
		return nil, errors.FromSearchEngineError(index, err)
	}
	resp, err := engine.GetMapping(ctx, index)
	if err != nil {
		return nil, errors.FromSearchEngineError(index, err)
	}

	if body, ok := resp[index].(map[string]interface{}); ok {
		return body, nil
	}
	for _, v := range resp {
		if body, ok := v.(map[string]interface{}); ok {
			return body, nil
		}
	}
	return nil, errors.NewIndexNotFoundError(index)
}
