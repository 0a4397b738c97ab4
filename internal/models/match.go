// internal/models/match.go
package models

// Perspective selects the anchor entity when grouping matches.
type Perspective string

const (
	PerspectiveDemand   Perspective = "demand"
	PerspectiveSupplier Perspective = "supplier"
)

// MatchID builds the composite identity of a supplier/demand pair.
func MatchID(supplierID, demandID string) string {
	return supplierID + "_" + demandID
}

// Match is the scored relationship between one supplier and one demand.
// Sub-scores are raw (before weighting).
type Match struct {
	ID                  string   `json:"id"`
	Supplier            Supplier `json:"supplier"`
	Demand              Demand   `json:"demand"`
	Score               int      `json:"score"`
	KeywordScore        int      `json:"keywordScore"`
	ServiceTypeScore    int      `json:"serviceTypeScore"`
	IndustryScore       int      `json:"industryScore"`
	CapabilityScore     int      `json:"capabilityScore,omitempty"`
	MatchedKeywords     []string `json:"matchedKeywords"`
	MatchedServiceTypes []string `json:"matchedServiceTypes,omitempty"`
	Rationale           string   `json:"rationale"`
	Strategy            string   `json:"strategy"`
}

// AnchorID returns the id of the entity the match is grouped under.
func (m *Match) AnchorID(p Perspective) string {
	if p == PerspectiveSupplier {
		return m.Supplier.ID
	}
	return m.Demand.ID
}

// AnchorName returns the display name of the anchor entity.
func (m *Match) AnchorName(p Perspective) string {
	if p == PerspectiveSupplier {
		return m.Supplier.CompanyName
	}
	return m.Demand.OrganizationName
}

// MatchGroup holds every match sharing one anchor entity.
type MatchGroup struct {
	Perspective  Perspective `json:"perspective"`
	AnchorID     string      `json:"anchorId"`
	AnchorName   string      `json:"anchorName"`
	Matches      []Match     `json:"matches"`
	AverageScore float64     `json:"averageScore"`
}
