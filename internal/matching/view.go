// internal/matching/view.go
package matching

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bizmatch-workers/internal/models"
)

type SortField string

const (
	SortByScore            SortField = "score"
	SortByCompanyName      SortField = "company_name"
	SortByRegistrationDate SortField = "registration_date"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

var (
	ErrInvalidPerspective = errors.New("invalid perspective")
	ErrInvalidSortField   = errors.New("invalid sort field")
	ErrInvalidSortDir     = errors.New("invalid sort direction")
)

// Filters narrow a match list before grouping. Zero values disable a filter.
type Filters struct {
	Industry string `json:"industry,omitempty"`
	MinScore *int   `json:"minScore,omitempty"`
	MaxScore *int   `json:"maxScore,omitempty"`
	Search   string `json:"search,omitempty"`
}

// DefaultPerspective anchors groups on demands when no perspective is given.
const DefaultPerspective = models.PerspectiveDemand

// ViewOptions selects perspective, ordering and filters for presentation.
type ViewOptions struct {
	Perspective   models.Perspective `json:"perspective"`
	SortField     SortField          `json:"sortField"`
	SortDirection SortDirection      `json:"sortDirection"`
	Filters       Filters            `json:"filters"`
}

// Normalize fills defaults and rejects unknown values.
func (o *ViewOptions) Normalize() error {
	switch o.Perspective {
	case "":
		o.Perspective = DefaultPerspective
	case models.PerspectiveDemand, models.PerspectiveSupplier:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidPerspective, o.Perspective)
	}
	switch o.SortField {
	case "":
		o.SortField = SortByScore
	case SortByScore, SortByCompanyName, SortByRegistrationDate:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidSortField, o.SortField)
	}
	switch o.SortDirection {
	case "":
		o.SortDirection = SortDesc
	case SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidSortDir, o.SortDirection)
	}
	return nil
}

// Group partitions matches by anchor id. Groups come out in average-score
// descending order and each group's matches in score-descending order.
func Group(matches []models.Match, p models.Perspective) []models.MatchGroup {
	order := []string{}
	byAnchor := make(map[string]*models.MatchGroup)
	for _, m := range matches {
		id := m.AnchorID(p)
		g, ok := byAnchor[id]
		if !ok {
			g = &models.MatchGroup{Perspective: p, AnchorID: id, AnchorName: m.AnchorName(p)}
			byAnchor[id] = g
			order = append(order, id)
		}
		g.Matches = append(g.Matches, m)
	}

	groups := make([]models.MatchGroup, 0, len(order))
	for _, id := range order {
		g := byAnchor[id]
		sort.SliceStable(g.Matches, func(i, j int) bool { return g.Matches[i].Score > g.Matches[j].Score })
		sum := 0
		for _, m := range g.Matches {
			sum += m.Score
		}
		g.AverageScore = float64(sum) / float64(len(g.Matches))
		groups = append(groups, *g)
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].AverageScore > groups[j].AverageScore })
	return groups
}

// GroupAndSort filters, groups and orders groups per opts.
func GroupAndSort(matches []models.Match, opts ViewOptions) ([]models.MatchGroup, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	filtered := applyFilters(matches, opts)
	groups := Group(filtered, opts.Perspective)

	less := groupLess(opts)
	sort.SliceStable(groups, func(i, j int) bool { return less(groups[i], groups[j]) })
	return groups, nil
}

// Present returns the grouped-then-sorted matches as one flat list.
func Present(matches []models.Match, opts ViewOptions) ([]models.Match, error) {
	groups, err := GroupAndSort(matches, opts)
	if err != nil {
		return nil, err
	}
	out := make([]models.Match, 0, len(matches))
	for _, g := range groups {
		out = append(out, g.Matches...)
	}
	return out, nil
}

// Paginate returns the 1-based page of groups and the total group count.
func Paginate(groups []models.MatchGroup, page, pageSize int) ([]models.MatchGroup, int) {
	totalGroups := len(groups)
	if pageSize <= 0 {
		return groups, totalGroups
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= totalGroups {
		return []models.MatchGroup{}, totalGroups
	}
	end := min(start+pageSize, totalGroups)
	return groups[start:end], totalGroups
}

func applyFilters(matches []models.Match, opts ViewOptions) []models.Match {
	f := opts.Filters
	industry := strings.ToLower(strings.TrimSpace(f.Industry))
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		if industry != "" && strings.ToLower(strings.TrimSpace(m.Supplier.Industry)) != industry {
			continue
		}
		if f.MinScore != nil && m.Score < *f.MinScore {
			continue
		}
		if f.MaxScore != nil && m.Score > *f.MaxScore {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.AnchorName(opts.Perspective)), search) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func groupLess(opts ViewOptions) func(a, b models.MatchGroup) bool {
	asc := opts.SortDirection == SortAsc
	switch opts.SortField {
	case SortByCompanyName:
		return func(a, b models.MatchGroup) bool {
			x, y := strings.ToLower(a.AnchorName), strings.ToLower(b.AnchorName)
			if asc {
				return x < y
			}
			return x > y
		}
	case SortByRegistrationDate:
		return func(a, b models.MatchGroup) bool {
			x, y := anchorRegisteredAt(a), anchorRegisteredAt(b)
			if asc {
				return x.Before(y)
			}
			return x.After(y)
		}
	default:
		return func(a, b models.MatchGroup) bool {
			if asc {
				return a.AverageScore < b.AverageScore
			}
			return a.AverageScore > b.AverageScore
		}
	}
}

func anchorRegisteredAt(g models.MatchGroup) time.Time {
	if len(g.Matches) == 0 {
		return time.Time{}
	}
	if g.Perspective == models.PerspectiveSupplier {
		return g.Matches[0].Supplier.RegisteredAt
	}
	return g.Matches[0].Demand.RegisteredAt
}
