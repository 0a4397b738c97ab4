// internal/workers/matching/present-matches/models.go
package presentmatches

import (
	"bizmatch-workers/internal/cache"
	"bizmatch-workers/internal/common/validation"
	"bizmatch-workers/internal/matching"
	"bizmatch-workers/internal/models"
)

// Input selects a cached run by id, or carries the matches inline.
type Input struct {
	RunID         string                 `json:"runId,omitempty"`
	Matches       []models.Match         `json:"matches,omitempty"`
	Perspective   models.Perspective     `json:"perspective,omitempty"`
	SortField     matching.SortField     `json:"sortField,omitempty"`
	SortDirection matching.SortDirection `json:"sortDirection,omitempty"`
	Filters       matching.Filters       `json:"filters"`
	Page          int                    `json:"page,omitempty"`
	PageSize      int                    `json:"pageSize,omitempty"`
}

type Output struct {
	RunID       string                  `json:"runId,omitempty"`
	Perspective models.Perspective      `json:"perspective"`
	Groups      []models.MatchGroup     `json:"groups"`
	Matches     []models.Match          `json:"matches"`
	TotalGroups int                     `json:"totalGroups"`
	Page        int                     `json:"page"`
	PageSize    int                     `json:"pageSize"`
	Engagement  map[string]cache.Counts `json:"engagement,omitempty"`
}

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "anyOf": [
    {"required": ["runId"]},
    {"required": ["matches"]}
  ],
  "properties": {
    "runId": {"type": "string", "minLength": 1},
    "matches": {"type": "array"},
    "perspective": {"type": "string", "enum": ["demand", "supplier"]},
    "sortField": {"type": "string", "enum": ["score", "company_name", "registration_date"]},
    "sortDirection": {"type": "string", "enum": ["asc", "desc"]},
    "filters": {
      "type": "object",
      "properties": {
        "industry": {"type": "string"},
        "minScore": {"type": "integer", "minimum": 0, "maximum": 100},
        "maxScore": {"type": "integer", "minimum": 0, "maximum": 100},
        "search": {"type": "string"}
      }
    },
    "page": {"type": "integer", "minimum": 1},
    "pageSize": {"type": "integer", "minimum": 1, "maximum": 200}
  }
}`)
