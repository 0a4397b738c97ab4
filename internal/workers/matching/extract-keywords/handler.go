// internal/workers/matching/extract-keywords/handler.go
package extractkeywords

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"bizmatch-workers/internal/common/camunda"
	"bizmatch-workers/internal/common/errors"
	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/common/metrics"
	"bizmatch-workers/internal/extraction"
	"bizmatch-workers/internal/models"
	"bizmatch-workers/internal/store"
)

const TaskType = "extract-keywords"

type RecordSource interface {
	FetchAllSuppliers(ctx context.Context) ([]models.Supplier, error)
	FetchAllDemands(ctx context.Context) ([]models.Demand, error)
}

type KeywordAnnotator interface {
	Annotate(ctx context.Context, demands []models.Demand, suppliers []models.Supplier) extraction.Report
}

type FailureNotifier interface {
	ExtractionFailures(ctx context.Context, runID string, failures []extraction.Failure) (string, error)
}

type Handler struct {
	config       *Config
	records      RecordSource
	annotator    KeywordAnnotator
	notifier     FailureNotifier
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the worker; notifier may be nil.
func NewHandler(config *Config, records RecordSource, annotator KeywordAnnotator, notifier FailureNotifier, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		records:      records,
		annotator:    annotator,
		notifier:     notifier,
		errorHandler: errors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandardError(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	result, err := inputSchema.Validate(variables)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("validation errors: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("decode variables: %v", err))
	}
	return &input, nil
}

// Execute annotates every record in scope that still lacks keywords.
// It fails only when records were attempted and none succeeded.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	scope := input.Scope
	if scope == "" {
		scope = ScopeAll
	}

	var (
		demands   []models.Demand
		suppliers []models.Supplier
		err       error
	)
	if scope != ScopeSuppliers {
		if demands, err = h.records.FetchAllDemands(ctx); err != nil {
			return nil, fetchFailed("demands", err)
		}
	}
	if scope != ScopeDemands {
		if suppliers, err = h.records.FetchAllSuppliers(ctx); err != nil {
			return nil, fetchFailed("suppliers", err)
		}
	}

	report := h.annotator.Annotate(ctx, demands, suppliers)

	h.logger.Info("Keyword extraction finished", map[string]interface{}{
		"scope":     scope,
		"attempted": report.Attempted,
		"completed": report.Completed,
		"failed":    len(report.Failures),
		"skipped":   report.Skipped,
	})

	if input.Notify && h.notifier != nil && len(report.Failures) > 0 {
		if _, err := h.notifier.ExtractionFailures(ctx, uuid.NewString(), report.Failures); err != nil {
			h.logger.Warn("Failed to publish extraction failure notice", map[string]interface{}{"error": err.Error()})
		}
	}

	if report.Attempted > 0 && report.Completed == 0 {
		return nil, errors.NewKeywordExtractionFailedError(
			fmt.Sprintf("all %d extraction attempts failed; first: %s", report.Attempted, report.Failures[0].Reason))
	}

	return &Output{
		Attempted: report.Attempted,
		Completed: report.Completed,
		Skipped:   report.Skipped,
		Failures:  report.Failures,
	}, nil
}

// fetchFailed separates an unreachable database from a failing query.
func fetchFailed(entity string, err error) error {
	if store.IsConnectionError(err) {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	return errors.NewRecordFetchFailedError(entity, err)
}
