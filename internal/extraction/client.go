// Package extraction calls the external keyword extractor and annotates records that lack keywords.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	commonhttp "bizmatch-workers/internal/common/http"
	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/models"
)

const extractPath = "/api/ai/extract-keywords"

var (
	// ErrNoKeywords means the extractor answered but produced no keywords.
	ErrNoKeywords = errors.New("extractor returned no keywords")
	ErrEmptyText  = errors.New("no text to extract keywords from")
)

type extractRequest struct {
	Text       string            `json:"text"`
	EntityType models.EntityType `json:"entityType"`
	RecordID   string            `json:"recordId"`
}

type extractResponse struct {
	Keywords string `json:"keywords"`
}

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	// BaseDelay is the first backoff step; it doubles per retry.
	BaseDelay time.Duration
}

// Client talks to the keyword extraction service.
type Client struct {
	http       *commonhttp.Client
	maxRetries int
	baseDelay  time.Duration
	logger     logger.Logger
}

func NewClient(cfg ClientConfig, log logger.Logger) *Client {
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		http:       commonhttp.NewJSONClient(cfg.BaseURL, cfg.Timeout, headers),
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		logger:     log.WithFields(map[string]interface{}{"component": "keyword-extractor"}),
	}
}

// ExtractKeywords returns a comma separated keyword list for text.
// Transport errors and 5xx/429 answers are retried with exponential backoff.
func (c *Client) ExtractKeywords(ctx context.Context, text string, entityType models.EntityType, recordID string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	req := extractRequest{Text: text, EntityType: entityType, RecordID: recordID}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			c.logger.Warn("Keyword extraction failed, retrying", map[string]interface{}{
				"recordId":    recordID,
				"attempt":     attempt,
				"nextRetryIn": delay.String(),
				"error":       lastErr.Error(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		var resp extractResponse
		err := c.http.PostJSON(ctx, extractPath, req, &resp)
		if err == nil {
			keywords := normalizeKeywords(resp.Keywords)
			if keywords == "" {
				return "", ErrNoKeywords
			}
			return keywords, nil
		}

		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return "", fmt.Errorf("extract keywords for %s %s: %w", entityType, recordID, lastErr)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *commonhttp.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

// normalizeKeywords trims each entry and drops blanks, keeping order.
func normalizeKeywords(raw string) string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
