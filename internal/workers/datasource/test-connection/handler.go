package testconnection

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"es-query-studio/internal/common/camunda"
	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/gateway"
)

const (
	TaskType = "test-connection"
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

// Execute probes the selected targets concurrently. Unreachable targets are
// reported in the output; only an unknown environment fails the call.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}

	target := strings.ToLower(input.Target)
	if target == "" {
		target = TargetAll
	}
	if target != TargetAll && target != TargetElasticsearch && target != TargetOracle {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("unknown target %q", input.Target))
	}

	var (
		wg     sync.WaitGroup
		output Output
		esErr  error
		oraErr error
	)
	if target == TargetAll || target == TargetElasticsearch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			output.Elasticsearch, esErr = h.probeElasticsearch(ctx, input.EnvironmentID)
		}()
	}
	if target == TargetAll || target == TargetOracle {
		wg.Add(1)
		go func() {
			defer wg.Done()
			output.Oracle, oraErr = h.probeOracle(ctx, input.EnvironmentID, input.Owner)
		}()
	}
	wg.Wait()

	for _, err := range []error{esErr, oraErr} {
		if err != nil {
			return nil, err
		}
	}

	output.Healthy = (output.Elasticsearch == nil || output.Elasticsearch.Connected) &&
		(output.Oracle == nil || output.Oracle.Connected)

	h.logger.Info("connection test finished", map[string]interface{}{
		"environmentId": input.EnvironmentID,
		"target":        target,
		"healthy":       output.Healthy,
	})
	return &output, nil
}

func (h *Handler) probeElasticsearch(ctx context.Context, environmentID string) (*ElasticsearchStatus, error) {
	status := &ElasticsearchStatus{}
	engine, err := h.resolver.SearchEngine(ctx, environmentID)
	if err != nil {
		if envErr := environmentError(err); envErr != nil {
			return nil, envErr
		}
		status.Error = describe(err)
		return status, nil
	}

	start := time.Now()
	info, err := engine.Info(ctx)
	status.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = describe(err)
		return status, nil
	}
	status.Connected = true
	status.ClusterName = info.ClusterName
	status.NodeName = info.Name
	status.Version = info.Version

	if indices, err := engine.ListIndices(ctx); err == nil {
		status.IndexCount = len(indices)
	} else {
		h.logger.Warn("listing indices failed", map[string]interface{}{"error": err.Error()})
	}
	return status, nil
}

func (h *Handler) probeOracle(ctx context.Context, environmentID, owner string) (*OracleStatus, error) {
	status := &OracleStatus{}
	src, err := h.resolver.SourceDatabase(ctx, environmentID)
	if err != nil {
		if envErr := environmentError(err); envErr != nil {
			return nil, envErr
		}
		status.Error = describe(err)
		return status, nil
	}

	start := time.Now()
	tables, err := src.ListTables(ctx, owner)
	status.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = describe(err)
		return status, nil
	}
	status.Connected = true
	status.TableCount = len(tables)
	if len(tables) > h.config.MaxTables {
		tables = tables[:h.config.MaxTables]
	}
	status.Tables = tables
	return status, nil
}

// environmentError passes through a lookup failure for an unknown
// environment; every other failure belongs to a single target.
func environmentError(err error) error {
	if std := errors.AsStandardError(err); std.Code == errors.ErrCodeEnvironmentNotFound {
		return std
	}
	return nil
}

func describe(err error) string {
	var std *errors.StandardError
	if stderrors.As(err, &std) && std.Details != "" {
		return std.Message + ": " + std.Details
	}
	return err.Error()
}
