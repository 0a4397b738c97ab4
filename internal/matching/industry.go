// internal/matching/industry.go
package matching

import "strings"

const (
	industryExact    = 100
	industryContains = 70
)

// IndustryScore compares a demand's declared type with a supplier's industry.
func IndustryScore(demandType, supplierIndustry string) int {
	d := strings.ToLower(strings.TrimSpace(demandType))
	s := strings.ToLower(strings.TrimSpace(supplierIndustry))
	if d == "" || s == "" {
		return 0
	}
	if d == s {
		return industryExact
	}
	if strings.Contains(d, s) || strings.Contains(s, d) {
		return industryContains
	}
	return 0
}
