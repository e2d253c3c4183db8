package executesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"es-query-studio/internal/common/camunda"
	"es-query-studio/internal/common/database"
	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/common/metrics"
	"es-query-studio/internal/gateway"
	"es-query-studio/internal/querydsl"
	compilequery "es-query-studio/internal/workers/query/compile-query"
)

const (
	TaskType = "execute-search"
)

type Handler struct {
	config       *Config
	compiler     *compilequery.Handler
	resolver     gateway.Resolver
	questions    querydsl.QuestionGenerator
	errorHandler *errors.ErrorHandler
	tracer       trace.Tracer
	logger       logger.Logger
}

// NewHandler builds the search handler. questions may be nil.
func NewHandler(config *Config, compiler *compilequery.Handler, resolver gateway.Resolver, questions querydsl.QuestionGenerator, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		compiler:     compiler,
		resolver:     resolver,
		questions:    questions,
		errorHandler: errors.NewErrorHandler(log),
		tracer:       otel.Tracer("es-query-studio/workers/execute-search"),
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

// Execute compiles the request and runs it against the environment's
// cluster.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidRequestError("input cannot be nil")
	}

	compiled, err := h.compiler.Execute(ctx, &input.Input)
	if err != nil {
		return nil, err
	}
	index := compiled.IndexName

	engine, err := h.resolver.SearchEngine(ctx, input.EnvironmentID)
	if err != nil {
		return nil, errors.FromSearchEngineError(index, err)
	}

	ctx, span := h.tracer.Start(ctx, "search", trace.WithAttributes(
		attribute.String("index", index),
		attribute.String("environment", input.EnvironmentID),
	))
	defer span.End()

	start := time.Now()
	result, err := engine.Search(ctx, index, compiled.Query)
	metrics.SearchDuration.WithLabelValues(index).Observe(time.Since(start).Seconds())
	metrics.SearchRequests.WithLabelValues(index, metrics.Result(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewSearchTimeoutError(index)
		}
		return nil, errors.FromSearchEngineError(index, err)
	}

	if result.TimedOut {
		h.logger.Warn("search timed out on some shards, results are partial", map[string]interface{}{
			"indexName": index,
			"took":      result.Took,
		})
	}

	output := &Output{
		Hits:         result.Hits,
		TotalHits:    result.TotalHits,
		MaxScore:     result.MaxScore,
		Took:         result.Took,
		TimedOut:     result.TimedOut,
		Aggregations: result.Aggregations,
		Query:        compiled.Query,
	}
	if output.Hits == nil {
		output.Hits = []database.Hit{}
	}

	if input.GenerateQuestions {
		output.Questions, output.QuestionsStatus = h.generateQuestions(ctx, index, compiled.Query)
	}

	h.logger.Info("search executed", map[string]interface{}{
		"indexName": index,
		"totalHits": result.TotalHits,
		"took":      result.Took,
	})
	return output, nil
}

// generateQuestions is best effort; failures leave the list empty and are
// reported through the returned status.
func (h *Handler) generateQuestions(ctx context.Context, index string, body map[string]interface{}) ([]string, string) {
	if h.questions == nil {
		h.logger.Warn("question generation requested but no generator configured", map[string]interface{}{
			"indexName": index,
		})
		return nil, QuestionsNotConfigured
	}
	questions, err := h.questions.Generate(ctx, index, body)
	if err != nil {
		h.logger.Warn("question generation failed", map[string]interface{}{
			"indexName": index,
			"error":     err.Error(),
		})
		return nil, QuestionsFailed
	}
	return questions, QuestionsGenerated
}
