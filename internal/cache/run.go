// Package cache keeps curated matching runs and match engagement counters in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bizmatch-workers/internal/models"
)

// ErrRunNotFound is returned when a run id is unknown or its entry expired.
var ErrRunNotFound = errors.New("matching run not found")

const runKeyPrefix = "matching:run:"

// Run is one curated matching result set.
type Run struct {
	ID        string         `json:"id"`
	Strategy  string         `json:"strategy"`
	CreatedAt time.Time      `json:"createdAt"`
	Matches   []models.Match `json:"matches"`
}

type RunCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunCache stores runs for ttl. A non-positive ttl keeps them until evicted.
func NewRunCache(client *redis.Client, ttl time.Duration) *RunCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RunCache{client: client, ttl: ttl}
}

func runKey(runID string) string {
	return runKeyPrefix + runID
}

func (c *RunCache) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is empty")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}
	if err := c.client.Set(ctx, runKey(run.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache run %s: %w", run.ID, err)
	}
	return nil
}

func (c *RunCache) Load(ctx context.Context, runID string) (*Run, error) {
	data, err := c.client.Get(ctx, runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &run, nil
}
