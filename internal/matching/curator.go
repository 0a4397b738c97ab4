// internal/matching/curator.go
package matching

import (
	"sort"

	"bizmatch-workers/internal/models"
)

const DefaultFairnessCap = 5

// Curator bounds how many matches any single demand or supplier keeps.
// The demand-side cap runs first and the supplier-side cap trims its output,
// so the two caps compose rather than forming a global assignment.
type Curator struct {
	DemandCap   int
	SupplierCap int
}

func NewCurator() *Curator {
	return &Curator{DemandCap: DefaultFairnessCap, SupplierCap: DefaultFairnessCap}
}

// Curate applies the default caps.
func Curate(matches []models.Match) []models.Match {
	return NewCurator().Curate(matches)
}

// Curate filters, caps per demand, caps per supplier and sorts by score descending.
func (c *Curator) Curate(matches []models.Match) []models.Match {
	positive := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score > 0 {
			positive = append(positive, m)
		}
	}

	demandCapped := capPerAnchor(positive, models.PerspectiveDemand, c.DemandCap)
	supplierCapped := capPerAnchor(demandCapped, models.PerspectiveSupplier, c.SupplierCap)

	sort.SliceStable(supplierCapped, func(i, j int) bool {
		return supplierCapped[i].Score > supplierCapped[j].Score
	})
	return supplierCapped
}

// capPerAnchor keeps the top n matches of every anchor. Groups are emitted in
// first-seen order; a non-positive n disables the cap.
func capPerAnchor(matches []models.Match, p models.Perspective, n int) []models.Match {
	order := []string{}
	groups := make(map[string][]models.Match)
	for _, m := range matches {
		id := m.AnchorID(p)
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], m)
	}

	out := make([]models.Match, 0, len(matches))
	for _, id := range order {
		g := groups[id]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Score > g[j].Score })
		if n > 0 && len(g) > n {
			g = g[:n]
		}
		out = append(out, g...)
	}
	return out
}
