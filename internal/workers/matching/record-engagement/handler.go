// internal/workers/matching/record-engagement/handler.go
package recordengagement

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"bizmatch-workers/internal/cache"
	"bizmatch-workers/internal/common/camunda"
	"bizmatch-workers/internal/common/errors"
	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/common/metrics"
)

const TaskType = "record-engagement"

type Counter interface {
	Increment(ctx context.Context, matchID string, kind cache.EngagementKind) (int64, error)
	Counts(ctx context.Context, matchIDs []string) (map[string]cache.Counts, error)
}

type Handler struct {
	config       *Config
	counter      Counter
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, counter Counter, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		counter:      counter,
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

// Execute bumps one engagement counter and returns both totals for the match.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	matchID := strings.TrimSpace(input.MatchID)
	if matchID == "" {
		return nil, errors.NewInvalidInputError("matchId is required")
	}

	count, err := h.counter.Increment(ctx, matchID, input.Kind)
	if stderrors.Is(err, cache.ErrUnknownEngagement) {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if err != nil {
		return nil, errors.NewCacheFailedError(err)
	}
	metrics.EngagementEvents.WithLabelValues(string(input.Kind)).Inc()

	output := &Output{MatchID: matchID, Kind: input.Kind, Count: count}

	counts, err := h.counter.Counts(ctx, []string{matchID})
	if err != nil {
		h.logger.Warn("Failed to read engagement totals", map[string]interface{}{"matchId": matchID, "error": err.Error()})
	} else {
		output.Interest = counts[matchID].Interest
		output.Comment = counts[matchID].Comment
	}

	h.logger.Info("Engagement recorded", map[string]interface{}{
		"matchId": matchID,
		"kind":    input.Kind,
		"count":   count,
	})
	return output, nil
}
