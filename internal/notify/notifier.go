// Package notify tells operators about extraction failures and finished matching runs.
package notify

import (
	"context"
	"fmt"
	"strings"

	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/extraction"
	"bizmatch-workers/internal/models"
)

// maxListed bounds how many records or matches a single message lists.
const maxListed = 20

type TopicPublisher interface {
	PublishToTopic(ctx context.Context, topicARN, subject, message string) (string, error)
}

type EmailSender interface {
	SendText(ctx context.Context, to []string, subject, body string) (string, error)
}

type Config struct {
	SNSEnabled bool
	TopicARN   string
	SESEnabled bool
	Recipients []string
}

// RunSummary is the digest mailed after a matching run.
type RunSummary struct {
	RunID              string
	Strategy           string
	DemandCount        int
	SupplierCount      int
	RawMatchCount      int
	CuratedCount       int
	ExtractionFailures int
	TopMatches         []models.Match
}

type Notifier struct {
	publisher TopicPublisher
	sender    EmailSender
	cfg       Config
	logger    logger.Logger
}

// NewNotifier accepts nil clients for channels that are disabled.
func NewNotifier(publisher TopicPublisher, sender EmailSender, cfg Config, log logger.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		sender:    sender,
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// ExtractionFailures publishes one SNS notice listing the records left without keywords.
// It returns an empty message id when SNS is disabled or there is nothing to report.
func (n *Notifier) ExtractionFailures(ctx context.Context, runID string, failures []extraction.Failure) (string, error) {
	if !n.cfg.SNSEnabled || n.publisher == nil || len(failures) == 0 {
		return "", nil
	}

	subject := fmt.Sprintf("Keyword extraction failed for %d record(s)", len(failures))

	var b strings.Builder
	fmt.Fprintf(&b, "Matching run %s could not extract keywords for %d record(s).\n", runID, len(failures))
	b.WriteString("These records were matched without keyword scores.\n\n")
	for i, f := range failures {
		if i == maxListed {
			fmt.Fprintf(&b, "... and %d more\n", len(failures)-maxListed)
			break
		}
		fmt.Fprintf(&b, "- %s %s (%s): %s\n", f.EntityType, f.RecordID, f.Name, f.Reason)
	}

	id, err := n.publisher.PublishToTopic(ctx, n.cfg.TopicARN, subject, b.String())
	if err != nil {
		return "", fmt.Errorf("publish extraction failures: %w", err)
	}
	n.logger.Info("Extraction failure notice published", map[string]interface{}{
		"runId":     runID,
		"failures":  len(failures),
		"messageId": id,
	})
	return id, nil
}

// RunSummary mails the run counts and best matches to the configured recipients.
func (n *Notifier) RunSummary(ctx context.Context, s RunSummary) (string, error) {
	if !n.cfg.SESEnabled || n.sender == nil || len(n.cfg.Recipients) == 0 {
		return "", nil
	}

	subject := fmt.Sprintf("Matching run %s: %d curated matches", s.RunID, s.CuratedCount)

	var b strings.Builder
	fmt.Fprintf(&b, "Run:        %s\n", s.RunID)
	fmt.Fprintf(&b, "Strategy:   %s\n", s.Strategy)
	fmt.Fprintf(&b, "Demands:    %d\n", s.DemandCount)
	fmt.Fprintf(&b, "Suppliers:  %d\n", s.SupplierCount)
	fmt.Fprintf(&b, "Scored:     %d above threshold\n", s.RawMatchCount)
	fmt.Fprintf(&b, "Curated:    %d\n", s.CuratedCount)
	if s.ExtractionFailures > 0 {
		fmt.Fprintf(&b, "Records without keywords: %d\n", s.ExtractionFailures)
	}

	if len(s.TopMatches) > 0 {
		b.WriteString("\nTop matches:\n")
		for i, m := range s.TopMatches {
			if i == maxListed {
				break
			}
			fmt.Fprintf(&b, "%2d. %s <-> %s  score %d\n", i+1, m.Demand.OrganizationName, m.Supplier.CompanyName, m.Score)
		}
	}

	id, err := n.sender.SendText(ctx, n.cfg.Recipients, subject, b.String())
	if err != nil {
		return "", fmt.Errorf("send run summary: %w", err)
	}
	n.logger.Info("Run summary sent", map[string]interface{}{
		"runId":      s.RunID,
		"recipients": len(n.cfg.Recipients),
		"messageId":  id,
	})
	return id, nil
}
