// internal/workers/matching/compute-matches/handler.go
package computematches

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"bizmatch-workers/internal/cache"
	"bizmatch-workers/internal/common/camunda"
	"bizmatch-workers/internal/common/errors"
	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/common/metrics"
	"bizmatch-workers/internal/common/observability"
	"bizmatch-workers/internal/extraction"
	"bizmatch-workers/internal/matching"
	"bizmatch-workers/internal/models"
	"bizmatch-workers/internal/notify"
	"bizmatch-workers/internal/search"
	"bizmatch-workers/internal/store"
)

const TaskType = "compute-matches"

const (
	defaultAnnotateBudget = 0.5
	completeTimeout       = 10 * time.Second
)

type RecordSource interface {
	FetchAllSuppliers(ctx context.Context) ([]models.Supplier, error)
	FetchAllDemands(ctx context.Context) ([]models.Demand, error)
}

type KeywordAnnotator interface {
	Annotate(ctx context.Context, demands []models.Demand, suppliers []models.Supplier) extraction.Report
}

type RunStore interface {
	Save(ctx context.Context, run *cache.Run) error
}

type MatchIndex interface {
	IndexRun(ctx context.Context, runID string, matches []models.Match) (*search.BulkResult, error)
}

type Notices interface {
	ExtractionFailures(ctx context.Context, runID string, failures []extraction.Failure) (string, error)
	RunSummary(ctx context.Context, s notify.RunSummary) (string, error)
}

// Dependencies are the collaborators of a run. Annotator, Index and Notifier may be nil.
type Dependencies struct {
	Records       RecordSource
	Annotator     KeywordAnnotator
	Runs          RunStore
	Index         MatchIndex
	Notifier      Notices
	Observability *observability.Observability
}

type Handler struct {
	config       *Config
	deps         Dependencies
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	newRunID     func() string
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	if deps.Observability == nil {
		deps.Observability = observability.NewNoop()
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		deps:         deps,
		errorHandler: errors.NewErrorHandler(l),
		logger:       l,
		newRunID:     uuid.NewString,
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
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if ctx.Err() != nil {
			// Execute may finish past the deadline; the outcome must still reach the broker.
			var done context.CancelFunc
			ctx, done = context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
			defer done()
		}
		if err == nil {
			err = camunda.CompleteJob(ctx, client, job, output)
			if err != nil {
				h.logger.Error("Failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
				return
			}
		}
	}

	status := "completed"
	if err != nil {
		status = "failed"
		code := errors.AsStandardError(err).Code
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
	} else {
		metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	}
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.deps.Observability.RecordJobProcessed(ctx, TaskType, status)
	h.deps.Observability.RecordJobDuration(ctx, TaskType, time.Since(startTime), status)
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

// Execute runs one matching pass: fetch, annotate, score, curate, cache, index and notify.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	strategyName := input.Strategy
	if strategyName == "" {
		strategyName = h.config.Strategy
	}
	strategy, err := matching.StrategyByName(strategyName)
	if err != nil {
		return nil, errors.NewUnknownStrategyError(err)
	}

	threshold := h.config.MinimumScoreThreshold
	if input.MinimumScoreThreshold != nil {
		threshold = *input.MinimumScoreThreshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("minimumScoreThreshold %d outside 0..100", threshold))
	}

	runID := h.newRunID()
	ctx, span := h.deps.Observability.StartSpan(ctx, "compute-matches", map[string]string{
		"run.id":    runID,
		"strategy":  strategy.Name(),
		"threshold": strconv.Itoa(threshold),
	})
	var runErr error
	defer func() { observability.EndSpan(span, runErr) }()

	demands, suppliers, runErr := h.fetch(ctx)
	if runErr != nil {
		return nil, runErr
	}

	failures := []extraction.Failure{}
	skipped := 0
	if input.ExtractMissingKeywords && h.deps.Annotator != nil {
		report := h.annotate(ctx, demands, suppliers)
		failures = report.Failures
		skipped = report.Skipped

		// An extraction call in flight may outlive the job deadline. The records already
		// fetched are still scored, cached and indexed within the remaining share.
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), h.finishReserve())
			defer cancel()
			h.logger.Warn("Keyword extraction overran the job deadline, finishing run on reserve", map[string]interface{}{
				"runId":   runID,
				"reserve": h.finishReserve().String(),
			})
		}
	}

	raw, runErr := h.score(ctx, strategy, threshold, demands, suppliers)
	if runErr != nil {
		return nil, runErr
	}

	curator := &matching.Curator{DemandCap: h.config.DemandCap, SupplierCap: h.config.SupplierCap}
	curated := curator.Curate(raw)
	metrics.MatchingCuratedSize.Observe(float64(len(curated)))

	run := &cache.Run{ID: runID, Strategy: strategy.Name(), CreatedAt: time.Now().UTC(), Matches: curated}
	if err := h.deps.Runs.Save(ctx, run); err != nil {
		runErr = errors.NewCacheFailedError(err)
		return nil, runErr
	}

	indexed := 0
	if h.deps.Index != nil {
		res, err := h.deps.Index.IndexRun(ctx, runID, curated)
		if err != nil {
			runErr = errors.NewIndexFailedError(err)
			return nil, runErr
		}
		indexed = res.Succeeded
		if res.Failed > 0 {
			h.logger.Warn("Some matches were rejected by the index", map[string]interface{}{
				"runId":  runID,
				"failed": res.Failed,
			})
		}
	}

	output := &Output{
		RunID:              runID,
		Strategy:           strategy.Name(),
		DemandCount:        len(demands),
		SupplierCount:      len(suppliers),
		RawMatchCount:      len(raw),
		CuratedCount:       len(curated),
		IndexedCount:       indexed,
		Matches:            curated,
		ExtractionFailures: failures,
		ExtractionSkipped:  skipped,
	}

	if input.Notify {
		h.sendNotices(ctx, output)
	}

	h.logger.Info("Matching run completed", map[string]interface{}{
		"runId":          runID,
		"strategy":       output.Strategy,
		"demands":        output.DemandCount,
		"suppliers":      output.SupplierCount,
		"rawMatches":     output.RawMatchCount,
		"curated":        output.CuratedCount,
		"extractFailed":  len(failures),
		"extractSkipped": skipped,
	})
	return output, nil
}

func (h *Handler) fetch(ctx context.Context) ([]models.Demand, []models.Supplier, error) {
	ctx, span := h.deps.Observability.StartSpan(ctx, "fetch-records", nil)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	demands, err := h.deps.Records.FetchAllDemands(ctx)
	if err != nil {
		return nil, nil, fetchFailed("demands", err)
	}
	suppliers, err := h.deps.Records.FetchAllSuppliers(ctx)
	if err != nil {
		return nil, nil, fetchFailed("suppliers", err)
	}
	return demands, suppliers, nil
}

// annotate runs keyword extraction under its own share of the job deadline so that
// scoring always has time left.
func (h *Handler) annotate(ctx context.Context, demands []models.Demand, suppliers []models.Supplier) extraction.Report {
	total := h.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		total = time.Until(deadline)
	}
	actx, cancel := context.WithTimeout(ctx, time.Duration(float64(total)*h.annotateShare()))
	defer cancel()

	actx, span := h.deps.Observability.StartSpan(actx, "annotate-keywords", nil)
	report := h.deps.Annotator.Annotate(actx, demands, suppliers)
	observability.EndSpan(span, nil)

	if report.Skipped > 0 {
		h.logger.Warn("Extraction budget exhausted, records left without keywords", map[string]interface{}{
			"skipped": report.Skipped,
		})
	}
	return report
}

func (h *Handler) annotateShare() float64 {
	if s := h.config.AnnotateBudget; s > 0 && s < 1 {
		return s
	}
	return defaultAnnotateBudget
}

// finishReserve is the part of the job timeout not granted to extraction.
func (h *Handler) finishReserve() time.Duration {
	return time.Duration(float64(h.config.Timeout) * (1 - h.annotateShare()))
}

func (h *Handler) score(ctx context.Context, strategy matching.ScoringStrategy, threshold int, demands []models.Demand, suppliers []models.Supplier) ([]models.Match, error) {
	ctx, span := h.deps.Observability.StartSpan(ctx, "score-pairs", map[string]string{
		"demands":   strconv.Itoa(len(demands)),
		"suppliers": strconv.Itoa(len(suppliers)),
	})
	var err error
	defer func() { observability.EndSpan(span, err) }()

	orch := &matching.Orchestrator{
		Strategy:              strategy,
		MinimumScoreThreshold: threshold,
		Parallelism:           h.config.Parallelism,
	}
	raw, err := orch.ComputeAllMatches(ctx, demands, suppliers)
	if err != nil {
		if stderrors.Is(err, matching.ErrDuplicatePair) {
			return nil, errors.NewDuplicatePairError(err)
		}
		return nil, errors.NewInternalError(err)
	}

	pairs := len(demands) * len(suppliers)
	metrics.MatchingRuns.WithLabelValues(strategy.Name()).Inc()
	metrics.MatchingPairsScored.WithLabelValues(strategy.Name()).Add(float64(pairs))
	h.deps.Observability.RecordPairsScored(ctx, strategy.Name(), pairs)
	return raw, nil
}

// sendNotices reports extraction failures and mails the summary. Failures here are logged
// only: the run is already cached and indexed.
func (h *Handler) sendNotices(ctx context.Context, out *Output) {
	if h.deps.Notifier == nil {
		return
	}
	if _, err := h.deps.Notifier.ExtractionFailures(ctx, out.RunID, out.ExtractionFailures); err != nil {
		h.logger.Warn("Failed to publish extraction failure notice", map[string]interface{}{
			"runId": out.RunID,
			"error": err.Error(),
		})
	}

	top := out.Matches
	if len(top) > h.config.SummaryTopMatches {
		top = top[:h.config.SummaryTopMatches]
	}
	_, err := h.deps.Notifier.RunSummary(ctx, notify.RunSummary{
		RunID:              out.RunID,
		Strategy:           out.Strategy,
		DemandCount:        out.DemandCount,
		SupplierCount:      out.SupplierCount,
		RawMatchCount:      out.RawMatchCount,
		CuratedCount:       out.CuratedCount,
		ExtractionFailures: len(out.ExtractionFailures),
		TopMatches:         top,
	})
	if err != nil {
		h.logger.Warn("Failed to send run summary", map[string]interface{}{
			"runId": out.RunID,
			"error": err.Error(),
		})
	}
}

// fetchFailed separates an unreachable database from a failing query.
func fetchFailed(entity string, err error) error {
	if store.IsConnectionError(err) {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	return errors.NewRecordFetchFailedError(entity, err)
}
