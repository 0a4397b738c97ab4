package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ErrUnknownEngagement is returned for kinds other than interest and comment.
var ErrUnknownEngagement = errors.New("unknown engagement kind")

type EngagementKind string

const (
	EngagementInterest EngagementKind = "interest"
	EngagementComment  EngagementKind = "comment"
)

const engagementKeyPrefix = "matching:engagement:"

func (k EngagementKind) Valid() bool {
	return k == EngagementInterest || k == EngagementComment
}

// Counts are the engagement totals of one match.
type Counts struct {
	Interest int64 `json:"interest"`
	Comment  int64 `json:"comment"`
}

// Engagement counts interest and comment events per match id.
type Engagement struct {
	client *redis.Client
}

func NewEngagement(client *redis.Client) *Engagement {
	return &Engagement{client: client}
}

func engagementKey(matchID string) string {
	return engagementKeyPrefix + matchID
}

// Increment bumps one counter and returns its new value.
func (e *Engagement) Increment(ctx context.Context, matchID string, kind EngagementKind) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%q: %w", kind, ErrUnknownEngagement)
	}
	n, err := e.client.HIncrBy(ctx, engagementKey(matchID), string(kind), 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s for %s: %w", kind, matchID, err)
	}
	return n, nil
}

// Counts returns totals for every requested match id; ids never engaged with get zero counts.
func (e *Engagement) Counts(ctx context.Context, matchIDs []string) (map[string]Counts, error) {
	out := make(map[string]Counts, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(matchIDs))
	_, err := e.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range matchIDs {
			cmds[i] = p.HGetAll(ctx, engagementKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read engagement counts: %w", err)
	}

	for i, id := range matchIDs {
		fields := cmds[i].Val()
		out[id] = Counts{
			Interest: parseCount(fields[string(EngagementInterest)]),
			Comment:  parseCount(fields[string(EngagementComment)]),
		}
	}
	return out, nil
}

func parseCount(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
