// internal/workers/matching/present-matches/handler.go
package presentmatches

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"bizmatch-workers/internal/cache"
	"bizmatch-workers/internal/common/camunda"
	"bizmatch-workers/internal/common/errors"
	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/common/metrics"
	"bizmatch-workers/internal/matching"
	"bizmatch-workers/internal/models"
)

const TaskType = "present-matches"

type RunLoader interface {
	Load(ctx context.Context, runID string) (*cache.Run, error)
}

type EngagementReader interface {
	Counts(ctx context.Context, matchIDs []string) (map[string]cache.Counts, error)
}

type Handler struct {
	config       *Config
	runs         RunLoader
	engagement   EngagementReader
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the worker; engagement may be nil.
func NewHandler(config *Config, runs RunLoader, engagement EngagementReader, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		runs:         runs,
		engagement:   engagement,
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	matches, err := h.source(ctx, input)
	if err != nil {
		return nil, err
	}

	opts := matching.ViewOptions{
		Perspective:   input.Perspective,
		SortField:     input.SortField,
		SortDirection: input.SortDirection,
		Filters:       input.Filters,
	}
	groups, err := matching.GroupAndSort(matches, opts)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if opts.Perspective == "" {
		opts.Perspective = matching.DefaultPerspective
	}

	page, pageSize := input.Page, input.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = h.config.DefaultPageSize
	}
	pageGroups, total := matching.Paginate(groups, page, pageSize)

	flat := make([]models.Match, 0)
	for _, g := range pageGroups {
		flat = append(flat, g.Matches...)
	}

	output := &Output{
		RunID:       input.RunID,
		Perspective: opts.Perspective,
		Groups:      pageGroups,
		Matches:     flat,
		TotalGroups: total,
		Page:        page,
		PageSize:    pageSize,
	}

	if h.engagement != nil && len(flat) > 0 {
		ids := make([]string, len(flat))
		for i, m := range flat {
			ids[i] = m.ID
		}
		counts, err := h.engagement.Counts(ctx, ids)
		if err != nil {
			// Counts are decoration; the listing is still useful without them.
			h.logger.Warn("Failed to read engagement counts", map[string]interface{}{"error": err.Error()})
		} else {
			output.Engagement = counts
		}
	}

	h.logger.Info("Matches presented", map[string]interface{}{
		"runId":       input.RunID,
		"perspective": output.Perspective,
		"totalGroups": total,
		"page":        page,
	})
	return output, nil
}

// source returns the cached run's matches, or the inline matches when no run id is given.
func (h *Handler) source(ctx context.Context, input *Input) ([]models.Match, error) {
	if input.RunID == "" {
		if input.Matches == nil {
			return nil, errors.NewInvalidInputError("either runId or matches is required")
		}
		return input.Matches, nil
	}

	run, err := h.runs.Load(ctx, input.RunID)
	if stderrors.Is(err, cache.ErrRunNotFound) {
		return nil, errors.NewRunNotFoundError(input.RunID)
	}
	if err != nil {
		return nil, errors.NewCacheFailedError(err)
	}
	return run.Matches, nil
}
