// internal/workers/matching/extract-keywords/models.go
package extractkeywords

import (
	"bizmatch-workers/internal/common/validation"
	"bizmatch-workers/internal/extraction"
)

const (
	ScopeAll       = "all"
	ScopeDemands   = "demands"
	ScopeSuppliers = "suppliers"
)

type Input struct {
	Scope  string `json:"scope,omitempty"`
	Notify bool   `json:"notify"`
}

type Output struct {
	Attempted int                  `json:"attempted"`
	Completed int                  `json:"completed"`
	Skipped   int                  `json:"skipped"`
	Failures  []extraction.Failure `json:"failures"`
}

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "properties": {
    "scope": {"type": "string", "enum": ["all", "demands", "suppliers"]},
    "notify": {"type": "boolean"}
  }
}`)
