// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"

	"es-query-studio/internal/common/config"
	"es-query-studio/internal/common/errors"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/common/metrics"
	"es-query-studio/internal/common/observability"
	"es-query-studio/pkg/registry"
)

// JobHandler processes one job and is responsible for completing or
// failing it.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerManager opens one job worker per task type. Variables are checked
// against the activity input schema before the handler runs.
type WorkerManager struct {
	client   zbc.Client
	registry *registry.ActivityRegistry
	obs      *observability.Observability
	errors   *errors.ErrorHandler
	logger   logger.Logger
	workers  map[string]worker.JobWorker
}

func NewWorkerManager(client zbc.Client, reg *registry.ActivityRegistry, obs *observability.Observability, log logger.Logger) *WorkerManager {
	return &WorkerManager{
		client:   client,
		registry: reg,
		obs:      obs,
		errors:   errors.NewErrorHandler(log),
		logger:   log.WithFields(map[string]interface{}{"component": "worker-manager"}),
		workers:  map[string]worker.JobWorker{},
	}
}

// Register opens a worker for taskType unless it is disabled.
func (m *WorkerManager) Register(taskType string, cfg config.WorkerConfig, handler JobHandler) {
	if !cfg.Enabled {
		m.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	timeout := config.GetDuration(cfg.Timeout)
	if activity, ok := m.registry.Find(taskType); ok && timeout <= 0 {
		timeout = activity.TimeoutOr(30 * time.Second)
	}

	jw := m.client.NewJobWorker().
		JobType(taskType).
		Handler(m.wrap(taskType, handler)).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(timeout).
		Name("es-query-studio").
		Open()

	m.workers[taskType] = jw
	m.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": cfg.MaxJobsActive,
		"timeout":       timeout.String(),
	})
}

func (m *WorkerManager) wrap(taskType string, handler JobHandler) worker.JobHandler {
	activity, _ := m.registry.Find(taskType)

	return func(client worker.JobClient, job entities.Job) {
		ctx, span := m.obs.StartSpan(context.Background(), "job "+taskType,
			attribute.String("job.type", taskType),
			attribute.Int64("job.key", job.Key),
		)
		defer span.End()

		if err := CheckVariables(activity, job.Variables); err != nil {
			m.errors.HandleJobError(ctx, client, job, err)
			m.obs.RecordJobProcessed(ctx, taskType, "rejected")
			return
		}

		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		start := time.Now()
		handler.Handle(client, job)
		elapsed := time.Since(start)

		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		m.obs.RecordJobDuration(ctx, taskType, elapsed, "handled")
		m.obs.RecordJobProcessed(ctx, taskType, "handled")
	}
}

// CheckVariables validates raw job variables against the activity input
// schema. A nil activity accepts everything.
func CheckVariables(activity *registry.Activity, variables string) error {
	if activity == nil || len(activity.InputSchema) == 0 {
		return nil
	}
	if strings.TrimSpace(variables) == "" {
		variables = "{}"
	}
	res, err := activity.ValidateInput([]byte(variables))
	if err != nil {
		return errors.NewInternalError(err)
	}
	if !res.Valid {
		return errors.NewInvalidRequestError(strings.Join(res.GetErrorMessages(), "; ")).
			WithMetadata("taskType", activity.TaskType)
	}
	return nil
}

// Workers returns the task types with an open worker.
func (m *WorkerManager) Workers() []string {
	out := make([]string, 0, len(m.workers))
	for taskType := range m.workers {
		out = append(out, taskType)
	}
	return out
}

// Close stops every worker and waits for in-flight jobs.
func (m *WorkerManager) Close() {
	for taskType, jw := range m.workers {
		m.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		jw.Close()
		jw.AwaitClose()
	}
}

// CompleteJob sends the output variables and counts the completion.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
	log.Info("job completed", map[string]interface{}{"jobKey": job.Key})
}
