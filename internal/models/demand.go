// internal/models/demand.go
package models

import (
	"strings"
	"time"
)

// Demand is an organization's stated technology need.
type Demand struct {
	ID                     string        `json:"id"`
	OrganizationName       string        `json:"organizationName"`
	Department             string        `json:"department,omitempty"`
	Username               string        `json:"username"`
	Type                   string        `json:"type"`
	Content                string        `json:"content"`
	Budget                 *float64      `json:"budget,omitempty"`
	StartDate              *time.Time    `json:"startDate,omitempty"`
	EndDate                *time.Time    `json:"endDate,omitempty"`
	AdditionalRequirements string        `json:"additionalRequirements,omitempty"`
	RegisteredAt           time.Time     `json:"registeredAt"`
	ExtractedKeywords      string        `json:"extractedKeywords,omitempty"`
	KeywordStatus          KeywordStatus `json:"keywordStatus,omitempty"`
}

func (d *Demand) HasKeywords() bool {
	return strings.TrimSpace(d.ExtractedKeywords) != ""
}

func (d *Demand) ExtractionText() string {
	return joinNonEmpty(d.OrganizationName, d.Type, d.Content, d.AdditionalRequirements)
}

// ValidBudget reports whether the budget is absent or non-negative.
func (d *Demand) ValidBudget() bool {
	return d.Budget == nil || *d.Budget >= 0
}
