// internal/models/supplier.go
package models

import (
	"strings"
	"time"
)

// KeywordStatus tracks the keyword-extraction lifecycle of a record.
type KeywordStatus string

const (
	KeywordStatusPending   KeywordStatus = "pending"
	KeywordStatusCompleted KeywordStatus = "completed"
)

type EntityType string

const (
	EntityTypeSupplier EntityType = "supplier"
	EntityTypeDemand   EntityType = "demand"
)

// Supplier is a company offering an AI service.
type Supplier struct {
	ID                string        `json:"id"`
	CompanyName       string        `json:"companyName"`
	ServiceType       string        `json:"serviceType"`
	Industry          string        `json:"industry"`
	Description       string        `json:"description"`
	Patent            string        `json:"patent,omitempty"`
	Website           string        `json:"website,omitempty"`
	VideoLink         string        `json:"videoLink,omitempty"`
	Username          string        `json:"username"`
	RegisteredAt      time.Time     `json:"registeredAt"`
	ExtractedKeywords string        `json:"extractedKeywords,omitempty"`
	KeywordStatus     KeywordStatus `json:"keywordStatus,omitempty"`
}

// HasKeywords reports whether extraction produced a non-blank keyword list.
func (s *Supplier) HasKeywords() bool {
	return strings.TrimSpace(s.ExtractedKeywords) != ""
}

// ExtractionText is the free text sent to the keyword extractor.
func (s *Supplier) ExtractionText() string {
	return joinNonEmpty(s.CompanyName, s.ServiceType, s.Industry, s.Description, s.Patent)
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
