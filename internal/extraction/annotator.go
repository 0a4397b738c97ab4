package extraction

import (
	"context"
	"errors"
	"time"

	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/common/metrics"
	"bizmatch-workers/internal/models"
)

// Extractor is satisfied by *Client.
type Extractor interface {
	ExtractKeywords(ctx context.Context, text string, entityType models.EntityType, recordID string) (string, error)
}

// KeywordWriter persists extracted keywords.
type KeywordWriter interface {
	UpdateSupplierKeywords(ctx context.Context, id, keywords string) error
	UpdateDemandKeywords(ctx context.Context, id, keywords string) error
}

// Failure is a record whose keywords could not be extracted or saved.
type Failure struct {
	EntityType models.EntityType `json:"entityType"`
	RecordID   string            `json:"recordId"`
	Name       string            `json:"name"`
	Reason     string            `json:"reason"`
}

type Report struct {
	Attempted int       `json:"attempted"`
	Completed int       `json:"completed"`
	Failures  []Failure `json:"failures"`
	// Skipped counts records left unprocessed because the context was cancelled.
	Skipped int `json:"skipped"`
}

type Annotator struct {
	extractor Extractor
	writer    KeywordWriter
	delay     time.Duration
	logger    logger.Logger
}

func NewAnnotator(extractor Extractor, writer KeywordWriter, delay time.Duration, log logger.Logger) *Annotator {
	if delay < 0 {
		delay = 0
	}
	return &Annotator{
		extractor: extractor,
		writer:    writer,
		delay:     delay,
		logger:    log.WithFields(map[string]interface{}{"component": "keyword-annotator"}),
	}
}

type pending struct {
	entity models.EntityType
	id     string
	name   string
	text   string
	apply  func(keywords string)
}

// Annotate extracts keywords for every record lacking them, one call at a time with
// a delay between calls. Slices are updated in place. A failed record keeps empty
// keywords and is listed in the report; the remaining records are still processed.
// Once ctx is cancelled no new call starts, but a call already in flight completes.
func (a *Annotator) Annotate(ctx context.Context, demands []models.Demand, suppliers []models.Supplier) Report {
	queue := make([]pending, 0)
	for i := range demands {
		d := &demands[i]
		if d.HasKeywords() {
			continue
		}
		queue = append(queue, pending{
			entity: models.EntityTypeDemand, id: d.ID, name: d.OrganizationName, text: d.ExtractionText(),
			apply: func(kw string) {
				d.ExtractedKeywords = kw
				d.KeywordStatus = models.KeywordStatusCompleted
			},
		})
	}
	for i := range suppliers {
		s := &suppliers[i]
		if s.HasKeywords() {
			continue
		}
		queue = append(queue, pending{
			entity: models.EntityTypeSupplier, id: s.ID, name: s.CompanyName, text: s.ExtractionText(),
			apply: func(kw string) {
				s.ExtractedKeywords = kw
				s.KeywordStatus = models.KeywordStatusCompleted
			},
		})
	}

	report := Report{Failures: []Failure{}}
	for i, p := range queue {
		if i > 0 && !a.wait(ctx) {
			report.Skipped = len(queue) - i
			break
		}
		if ctx.Err() != nil {
			report.Skipped = len(queue) - i
			break
		}

		report.Attempted++
		if reason := a.annotateOne(context.WithoutCancel(ctx), p); reason != "" {
			report.Failures = append(report.Failures, Failure{
				EntityType: p.entity, RecordID: p.id, Name: p.name, Reason: reason,
			})
			continue
		}
		report.Completed++
	}

	a.logger.Info("Keyword annotation finished", map[string]interface{}{
		"queued":    len(queue),
		"attempted": report.Attempted,
		"completed": report.Completed,
		"failed":    len(report.Failures),
		"skipped":   report.Skipped,
	})
	return report
}

// annotateOne returns a failure reason, or "" on success.
func (a *Annotator) annotateOne(ctx context.Context, p pending) string {
	keywords, err := a.extractor.ExtractKeywords(ctx, p.text, p.entity, p.id)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrNoKeywords) || errors.Is(err, ErrEmptyText) {
			outcome = "empty"
		}
		metrics.KeywordExtractions.WithLabelValues(string(p.entity), outcome).Inc()
		a.logger.Warn("Keyword extraction failed", map[string]interface{}{
			"entityType": p.entity,
			"recordId":   p.id,
			"error":      err.Error(),
		})
		return err.Error()
	}
	metrics.KeywordExtractions.WithLabelValues(string(p.entity), "completed").Inc()

	// The run uses the keywords even if persisting them fails.
	p.apply(keywords)

	var saveErr error
	if p.entity == models.EntityTypeDemand {
		saveErr = a.writer.UpdateDemandKeywords(ctx, p.id, keywords)
	} else {
		saveErr = a.writer.UpdateSupplierKeywords(ctx, p.id, keywords)
	}
	if saveErr != nil {
		a.logger.Error("Failed to save extracted keywords", map[string]interface{}{
			"entityType": p.entity,
			"recordId":   p.id,
			"error":      saveErr.Error(),
		})
		return "save keywords: " + saveErr.Error()
	}
	return ""
}

// wait sleeps for the inter-call delay; it returns false if ctx ends first.
func (a *Annotator) wait(ctx context.Context) bool {
	if a.delay == 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(a.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
