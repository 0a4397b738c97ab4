// internal/workers/matching/record-engagement/models.go
package recordengagement

import (
	"bizmatch-workers/internal/cache"
	"bizmatch-workers/internal/common/validation"
)

type Input struct {
	MatchID string               `json:"matchId"`
	Kind    cache.EngagementKind `json:"kind"`
}

type Output struct {
	MatchID  string               `json:"matchId"`
	Kind     cache.EngagementKind `json:"kind"`
	Count    int64                `json:"count"`
	Interest int64                `json:"interest"`
	Comment  int64                `json:"comment"`
}

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["matchId", "kind"],
  "properties": {
    "matchId": {"type": "string", "minLength": 1},
    "kind": {"type": "string", "enum": ["interest", "comment"]}
  }
}`)
