package generatemapping

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
	"es-query-studio/internal/gateway"
	"es-query-studio/internal/mapping"
	"es-query-studio/internal/store"
)

const (
	TaskType = "generate-mapping"
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

// Execute builds and validates a mapping, then records it unless save is
// false. A mapping with error-level issues is rejected.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}
	if strings.TrimSpace(input.IndexName) == "" {
		return nil, errors.NewInvalidRequestError("indexName is required")
	}

	var (
		body map[string]interface{}
		rels []mapping.Relationship
		err  error
	)
	switch {
	case len(input.Fields) > 0:
		props, buildErr := mapping.BuildProperties(input.Fields)
		if buildErr != nil {
			return nil, errors.NewMappingInvalidError(buildErr.Error())
		}
		body = mapping.Wrap(props)
	case len(input.Tables) > 0:
		body, rels, err = h.fromTables(ctx, input)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.NewInvalidRequestError("either fields or tables is required")
	}

	report := mapping.Validate(body)
	if !report.Valid {
		return nil, errors.NewMappingInvalidError(report.Err().Error()).
			WithMetadata("summary", report.Summary)
	}

	output := &Output{Mapping: body, Relationships: rels, Validation: report}

	if input.Save == nil || *input.Save {
		rec := &store.MappingRecord{
			EnvironmentID: input.EnvironmentID,
			IndexName:     input.IndexName,
			Mapping:       body,
		}
		if err := h.store.SaveMapping(ctx, rec); err != nil {
			return nil, errors.NewStoreOperationFailedError("save mapping", err)
		}
		output.MappingID = rec.ID
	}

	h.logger.Info("mapping generated", map[string]interface{}{
		"indexName":  input.IndexName,
		"mappingId":  output.MappingID,
		"fieldCount": report.FieldCount,
		"score":      report.Score,
	})
	return output, nil
}

func (h *Handler) fromTables(ctx context.Context, input *Input) (map[string]interface{}, []mapping.Relationship, error) {
	src, err := h.resolver.SourceDatabase(ctx, input.EnvironmentID)
	if err != nil {
		return nil, nil, sourceError(err)
	}

	tables := make([]mapping.TableMetadata, 0, len(input.Tables))
	for _, name := range input.Tables {
		meta, err := src.DescribeTable(ctx, input.Owner, name)
		if err != nil {
			return nil, nil, errors.NewOracleQueryFailedError(name, err)
		}
		tables = append(tables, *meta)
	}

	rels := append([]mapping.Relationship(nil), input.Relationships...)
	if input.DetectRelationships {
		detected, err := src.DetectRelationships(ctx, input.Owner, input.Tables)
		if err != nil {
			return nil, nil, errors.NewOracleQueryFailedError(strings.Join(input.Tables, ","), err)
		}
		rels = mergeRelationships(rels, detected)
	}

	body, err := mapping.BuildRelationalMapping(input.RootTable, tables, rels)
	if err != nil {
		return nil, nil, errors.NewMappingInvalidError(err.Error())
	}
	return body, rels, nil
}

// mergeRelationships appends detected links for table pairs the caller did
// not declare explicitly.
func mergeRelationships(declared, detected []mapping.Relationship) []mapping.Relationship {
	seen := make(map[string]bool, len(declared))
	for _, r := range declared {
		seen[pairKey(r)] = true
	}
	for _, r := range detected {
		if !seen[pairKey(r)] {
			seen[pairKey(r)] = true
			declared = append(declared, r)
		}
	}
	return declared
}

func pairKey(r mapping.Relationship) string {
	return strings.ToLower(r.ParentTable) + ">" + strings.ToLower(r.ChildTable)
}

func sourceError(err error) error {
	if std := errors.AsStandardError(err); std.Code != errors.ErrCodeInternal {
		return std
	}
	return errors.NewOracleConnectionFailedError(err)
}
