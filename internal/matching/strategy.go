// internal/matching/strategy.go
package matching

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"bizmatch-workers/internal/models"
)

const (
	StrategyKeywordWeighted = "keyword_weighted"
	StrategyCapabilityBased = "capability_based"

	basicMatchRationale = "basic match."
)

var ErrUnknownStrategy = errors.New("unknown scoring strategy")

// ScoringStrategy turns one demand/supplier pair into a Match.
// Implementations must be pure: the same inputs always give the same Match.
type ScoringStrategy interface {
	ScorePair(demand models.Demand, supplier models.Supplier) models.Match
	Name() string
}

// StrategyByName resolves a configured strategy name. The empty name selects the default.
func StrategyByName(name string) (ScoringStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyKeywordWeighted:
		return KeywordWeighted{}, nil
	case StrategyCapabilityBased:
		return CapabilityBased{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
}

// KeywordWeighted is the canonical strategy:
// keyword similarity 60%, service-type relevance 30%, industry 10%.
type KeywordWeighted struct{}

func (KeywordWeighted) Name() string { return StrategyKeywordWeighted }

func (KeywordWeighted) ScorePair(demand models.Demand, supplier models.Supplier) models.Match {
	kw := KeywordSimilarity(demand.ExtractedKeywords, supplier.ExtractedKeywords)
	svc := ServiceTypeRelevance(demand.Content, supplier.ServiceType, demand.ExtractedKeywords, supplier.ExtractedKeywords)
	ind := IndustryScore(demand.Type, supplier.Industry)

	kwPart := float64(kw.Score) * 0.6
	svcPart := float64(svc.Score) * 0.3
	indPart := float64(ind) * 0.1

	r := rationale{}
	r.add("keyword match", kwPart)
	r.add("service type match", svcPart)
	r.add("industry match", indPart)

	return models.Match{
		ID:                  models.MatchID(supplier.ID, demand.ID),
		Supplier:            supplier,
		Demand:              demand,
		Score:               total(kwPart + svcPart + indPart),
		KeywordScore:        kw.Score,
		ServiceTypeScore:    svc.Score,
		IndustryScore:       ind,
		MatchedKeywords:     kw.MatchedKeywords,
		MatchedServiceTypes: svc.MatchedServiceTypes,
		Rationale:           r.String(),
		Strategy:            StrategyKeywordWeighted,
	}
}

// CapabilityBased is the older formula: Jaccard keyword overlap 70%,
// supplier profile completeness 30%.
type CapabilityBased struct{}

func (CapabilityBased) Name() string { return StrategyCapabilityBased }

func (CapabilityBased) ScorePair(demand models.Demand, supplier models.Supplier) models.Match {
	demandTerms := termsOf(demand.ExtractedKeywords, demand.Content)
	supplierTerms := termsOf(supplier.ExtractedKeywords, supplier.Description)
	similarity, shared := jaccard(demandTerms, supplierTerms)
	capability := CapabilityScore(supplier)

	simPart := similarity * 100 * 0.7
	capPart := float64(capability) * 0.3

	r := rationale{}
	r.add("keyword similarity", simPart)
	r.add("supplier capability", capPart)

	return models.Match{
		ID:              models.MatchID(supplier.ID, demand.ID),
		Supplier:        supplier,
		Demand:          demand,
		Score:           total(simPart + capPart),
		KeywordScore:    clamp(int(math.Round(similarity * 100))),
		CapabilityScore: capability,
		MatchedKeywords: shared,
		Rationale:       r.String(),
		Strategy:        StrategyCapabilityBased,
	}
}

const capabilityLongDescriptionRunes = 100

// CapabilityScore rates supplier profile completeness in steps of 25.
func CapabilityScore(s models.Supplier) int {
	score := 0
	if strings.TrimSpace(s.Patent) != "" {
		score += 25
	}
	if strings.TrimSpace(s.Website) != "" {
		score += 25
	}
	if strings.TrimSpace(s.VideoLink) != "" {
		score += 25
	}
	if utf8.RuneCountInString(strings.TrimSpace(s.Description)) > capabilityLongDescriptionRunes {
		score += 25
	}
	return score
}

// termsOf prefers extracted keywords and falls back to whitespace tokens of free text.
func termsOf(keywords, text string) []string {
	if terms := SplitKeywords(keywords); len(terms) > 0 {
		return terms
	}
	return strings.Fields(strings.ToLower(text))
}

// jaccard returns |A∩B| / |A∪B| and the shared terms in A's order.
func jaccard(a, b []string) (float64, []string) {
	shared := []string{}
	if len(a) == 0 || len(b) == 0 {
		return 0, shared
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[t] = true
	}
	union := make(map[string]bool, len(a)+len(b))
	for _, t := range b {
		union[t] = true
	}
	seen := make(map[string]bool, len(a))
	for _, t := range a {
		union[t] = true
		if setB[t] && !seen[t] {
			seen[t] = true
			shared = append(shared, t)
		}
	}
	return float64(len(shared)) / float64(len(union)), shared
}

func total(v float64) int {
	return clamp(int(math.Round(v)))
}

type rationale []string

func (r *rationale) add(label string, points float64) {
	if p := int(math.Round(points)); p > 0 {
		*r = append(*r, fmt.Sprintf("%s: %d points", label, p))
	}
}

func (r rationale) String() string {
	if len(r) == 0 {
		return basicMatchRationale
	}
	return strings.Join(r, ", ")
}
