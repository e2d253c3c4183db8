package applymapping

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"es-query-studio/internal/common/camunda"
	"es-query-studio/internal/common/database"
	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/gateway"
	"es-query-studio/internal/mapping"
	"es-query-studio/internal/store"
)

const (
	TaskType = "apply-mapping"
)

type Handler struct {
	config       *Config
	resolver     gateway.Resolver
	store        store.ConfigStore
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, resolver gateway.Resolver, configStore store.ConfigStore, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		resolver:     resolver,
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
		h.errorHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	camunda.CompleteJob(context.Background(), client, job, output, h.logger)
}

// Execute creates the index with the mapping. An existing index is an
// error unless Recreate is set, in which case it is dropped first.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}
	if strings.TrimSpace(input.IndexName) == "" {
		return nil, errors.NewInvalidRequestError("indexName is required")
	}

	body, err := h.resolveMapping(ctx, input)
	if err != nil {
		return nil, err
	}
	if report := mapping.Validate(body); !report.Valid {
		return nil, errors.NewMappingInvalidError(report.Err().Error())
	}

	engine, err := h.resolver.SearchEngine(ctx, input.EnvironmentID)
	if err != nil {
		return nil, errors.FromSearchEngineError(input.IndexName, err)
	}

	exists, err := engine.IndexExists(ctx, input.IndexName)
	if err != nil {
		return nil, errors.FromSearchEngineError(input.IndexName, err)
	}

	output := &Output{IndexName: input.IndexName, MappingID: input.MappingID}
	if exists {
		if !input.Recreate {
			return nil, errors.NewIndexAlreadyExistsError(input.IndexName)
		}
		if err := engine.DeleteIndex(ctx, input.IndexName); err != nil && !stderrors.Is(err, database.ErrIndexNotFound) {
			return nil, errors.NewMappingApplyFailedError(input.IndexName, err)
		}
		output.Recreated = true
		h.logger.Warn("existing index dropped", map[string]interface{}{"indexName": input.IndexName})
	}

	if err := engine.CreateIndex(ctx, input.IndexName, body); err != nil {
		return nil, createError(input.IndexName, err)
	}
	output.Created = true

	if input.MappingID != "" {
		if err := h.store.MarkMappingApplied(ctx, input.MappingID); err != nil {
			h.logger.Error("index created but mapping record not updated", map[string]interface{}{
				"mappingId": input.MappingID,
				"error":     err.Error(),
			})
		}
	}

	h.logger.Info("mapping applied", map[string]interface{}{
		"indexName": input.IndexName,
		"mappingId": input.MappingID,
		"recreated": output.Recreated,
	})
	return output, nil
}

func (h *Handler) resolveMapping(ctx context.Context, input *Input) (map[string]interface{}, error) {
	var body map[string]interface{}
	switch {
	case input.MappingID != "":
		rec, err := h.store.GetMapping(ctx, input.MappingID)
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewMappingNotFoundError(input.MappingID)
		}
		if err != nil {
			return nil, errors.NewStoreOperationFailedError("get mapping", err)
		}
		if rec.IndexName != input.IndexName {
			h.logger.Info("applying mapping to a different index than it was generated for", map[string]interface{}{
				"mappingId":    rec.ID,
				"generatedFor": rec.IndexName,
				"targetIndex":  input.IndexName,
			})
		}
		body = rec.Mapping
	case len(input.Mapping) > 0:
		body = input.Mapping
	default:
		return nil, errors.NewInvalidRequestError("either mappingId or mapping is required")
	}

	// A bare properties object is wrapped for the create-index API.
	if _, ok := body["mappings"]; !ok {
		if props, ok := body["properties"].(map[string]interface{}); ok {
			body = mapping.Wrap(props)
		}
	}
	return body, nil
}

// createError separates mappings the cluster rejects from transient
// failures.
func createError(index string, err error) error {
	if stderrors.Is(err, database.ErrIndexExists) {
		return errors.NewIndexAlreadyExistsError(index)
	}
	var respErr *database.ResponseError
	if stderrors.As(err, &respErr) && respErr.StatusCode == 400 {
		return errors.NewMappingInvalidError(respErr.Error())
	}
	return errors.NewMappingApplyFailedError(index, err)
}
