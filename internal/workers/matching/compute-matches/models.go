// internal/workers/matching/compute-matches/models.go
package computematches

import (
	"bizmatch-workers/internal/common/validation"
	"bizmatch-workers/internal/extraction"
	"bizmatch-workers/internal/models"
)

type Input struct {
	Strategy               string `json:"strategy,omitempty"`
	MinimumScoreThreshold  *int   `json:"minimumScoreThreshold,omitempty"`
	ExtractMissingKeywords bool   `json:"extractMissingKeywords"`
	Notify                 bool   `json:"notify"`
}

type Output struct {
	RunID              string               `json:"runId"`
	Strategy           string               `json:"strategy"`
	DemandCount        int                  `json:"demandCount"`
	SupplierCount      int                  `json:"supplierCount"`
	RawMatchCount      int                  `json:"rawMatchCount"`
	CuratedCount       int                  `json:"curatedCount"`
	IndexedCount       int                  `json:"indexedCount"`
	Matches            []models.Match       `json:"matches"`
	ExtractionFailures []extraction.Failure `json:"extractionFailures"`
	// ExtractionSkipped counts records left unannotated because the extraction budget ran out.
	ExtractionSkipped int `json:"extractionSkipped"`
}

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "properties": {
    "strategy": {"type": "string", "enum": ["keyword_weighted", "capability_based"]},
    "minimumScoreThreshold": {"type": "integer", "minimum": 0, "maximum": 100},
    "extractMissingKeywords": {"type": "boolean"},
    "notify": {"type": "boolean"}
  }
}`)
