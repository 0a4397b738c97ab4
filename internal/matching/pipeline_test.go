// internal/matching/pipeline_test.go
package matching

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizmatch-workers/internal/models"
)

// fixedStrategy scores pairs from a lookup table so pipeline tests control every score.
type fixedStrategy map[string]int

func (fixedStrategy) Name() string { return "fixed" }

func (f fixedStrategy) ScorePair(d models.Demand, s models.Supplier) models.Match {
	id := models.MatchID(s.ID, d.ID)
	return models.Match{ID: id, Demand: d, Supplier: s, Score: f[id], MatchedKeywords: []string{}}
}

func chatbotCatalogue(nDemands, nSuppliers int) ([]models.Demand, []models.Supplier) {
	demands := make([]models.Demand, nDemands)
	for i := range demands {
		demands[i] = models.Demand{
			ID:                fmt.Sprintf("d%d", i),
			OrganizationName:  fmt.Sprintf("기관%d", i),
			Type:              "정보통신업",
			Content:           "상담 챗봇 구축",
			ExtractedKeywords: "챗봇, 상담, 자연어",
		}
	}
	suppliers := make([]models.Supplier, nSuppliers)
	for i := range suppliers {
		suppliers[i] = models.Supplier{
			ID:                fmt.Sprintf("s%d", i),
			CompanyName:       fmt.Sprintf("업체%d", i),
			ServiceType:       "AI 챗봇/대화형AI",
			Industry:          "정보통신업",
			ExtractedKeywords: "챗봇, 상담",
		}
	}
	return demands, suppliers
}

func match(demandID, supplierID string, score int) models.Match {
	return models.Match{
		ID:       models.MatchID(supplierID, demandID),
		Demand:   models.Demand{ID: demandID, OrganizationName: "org-" + demandID},
		Supplier: models.Supplier{ID: supplierID, CompanyName: "co-" + supplierID},
		Score:    score,
	}
}

// ==========================
// Orchestrator
// ==========================

func TestComputeAllMatches_EmptyInputs(t *testing.T) {
	demands, suppliers := chatbotCatalogue(2, 2)

	out, err := ComputeAllMatches(nil, suppliers)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	out, err = ComputeAllMatches(demands, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestComputeAllMatches_CrossProductInDemandOrder(t *testing.T) {
	demands, suppliers := chatbotCatalogue(3, 10)

	out, err := ComputeAllMatches(demands, suppliers)
	require.NoError(t, err)
	require.Len(t, out, 30)

	for i, m := range out {
		assert.Equal(t, fmt.Sprintf("s%d_d%d", i%10, i/10), m.ID)
		assert.GreaterOrEqual(t, m.Score, DefaultMinimumScoreThreshold)
	}
}

func TestComputeAllMatches_Threshold(t *testing.T) {
	demands := []models.Demand{{ID: "d1"}}
	suppliers := []models.Supplier{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "z"}}
	scores := fixedStrategy{"a_d1": 19, "b_d1": 20, "c_d1": 55, "z_d1": 0}

	tests := []struct {
		name      string
		threshold int
		expected  []string
	}{
		{"default threshold", 20, []string{"b_d1", "c_d1"}},
		{"stricter threshold", 30, []string{"c_d1"}},
		{"zero threshold still drops zero scores", 0, []string{"a_d1", "b_d1", "c_d1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Orchestrator{Strategy: scores, MinimumScoreThreshold: tt.threshold}
			out, err := o.ComputeAllMatches(context.Background(), demands, suppliers)
			require.NoError(t, err)
			ids := make([]string, len(out))
			for i, m := range out {
				ids[i] = m.ID
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestComputeAllMatches_DuplicateIDs(t *testing.T) {
	demands, suppliers := chatbotCatalogue(2, 2)

	_, err := ComputeAllMatches(append(demands, demands[0]), suppliers)
	assert.ErrorIs(t, err, ErrDuplicatePair)

	_, err = ComputeAllMatches(demands, append(suppliers, suppliers[1]))
	assert.ErrorIs(t, err, ErrDuplicatePair)
}

func TestComputeAllMatches_ParallelMatchesSequential(t *testing.T) {
	demands, suppliers := chatbotCatalogue(12, 7)
	demands[3].ExtractedKeywords = ""
	suppliers[2].ServiceType = "AI 예측분석"

	sequential, err := ComputeAllMatches(demands, suppliers)
	require.NoError(t, err)

	o := NewOrchestrator()
	o.Parallelism = 4
	parallel, err := o.ComputeAllMatches(context.Background(), demands, suppliers)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

func TestComputeAllMatches_CanceledContext(t *testing.T) {
	demands, suppliers := chatbotCatalogue(3, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOrchestrator().ComputeAllMatches(ctx, demands, suppliers)
	assert.ErrorIs(t, err, context.Canceled)

	o := NewOrchestrator()
	o.Parallelism = 2
	_, err = o.ComputeAllMatches(ctx, demands, suppliers)
	assert.ErrorIs(t, err, context.Canceled)
}

// ==========================
// Curator
// ==========================

func TestCurate_ThreeDemandsTenSuppliers(t *testing.T) {
	demands, suppliers := chatbotCatalogue(3, 10)
	raw, err := ComputeAllMatches(demands, suppliers)
	require.NoError(t, err)
	require.Len(t, raw, 30)

	// The demand cap trims each demand to its top 5; no supplier then exceeds 5.
	curated := Curate(raw)
	assert.Len(t, curated, 15)

	uncapped := (&Curator{}).Curate(raw)
	assert.Len(t, uncapped, 30)
}

func TestCurate_DropsNonPositive(t *testing.T) {
	in := []models.Match{match("d1", "s1", 0), match("d1", "s2", -3), match("d1", "s3", 10)}
	out := Curate(in)
	require.Len(t, out, 1)
	assert.Equal(t, "s3_d1", out[0].ID)
}

func TestCurate_SequentialCapsCompose(t *testing.T) {
	// Supplier s0 is the best match for 7 demands; each demand also has 6 weaker suppliers.
	var in []models.Match
	for d := 0; d < 7; d++ {
		did := fmt.Sprintf("d%d", d)
		in = append(in, match(did, "s0", 90-d))
		for s := 1; s <= 6; s++ {
			in = append(in, match(did, fmt.Sprintf("s%d_%d", s, d), 50-s))
		}
	}

	out := Curate(in)

	perDemand := map[string]int{}
	perSupplier := map[string]int{}
	for _, m := range out {
		perDemand[m.Demand.ID]++
		perSupplier[m.Supplier.ID]++
	}
	for id, n := range perDemand {
		assert.LessOrEqual(t, n, DefaultFairnessCap, "demand %s", id)
	}
	for id, n := range perSupplier {
		assert.LessOrEqual(t, n, DefaultFairnessCap, "supplier %s", id)
	}
	assert.Equal(t, 5, perSupplier["s0"])
	// d5 and d6 lose s0 to the supplier cap and are left with 4.
	assert.Equal(t, 4, perDemand["d5"])
	assert.Equal(t, 4, perDemand["d6"])
	assert.Len(t, out, 7*5-2)
}

func TestCurate_SortedDescendingAndStable(t *testing.T) {
	in := []models.Match{
		match("d1", "a", 40),
		match("d2", "b", 70),
		match("d1", "c", 40),
		match("d3", "d", 90),
	}
	out := Curate(in)
	require.Len(t, out, 4)

	assert.True(t, sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Score > out[j].Score }))
	assert.Equal(t, "d_d3", out[0].ID)
	assert.Equal(t, "b_d2", out[1].ID)
	assert.Equal(t, "a_d1", out[2].ID)
	assert.Equal(t, "c_d1", out[3].ID)
}

func TestCurator_CustomCaps(t *testing.T) {
	var in []models.Match
	for s := 0; s < 4; s++ {
		in = append(in, match("d1", fmt.Sprintf("s%d", s), 80-s))
	}
	out := (&Curator{DemandCap: 2, SupplierCap: 5}).Curate(in)
	require.Len(t, out, 2)
	assert.Equal(t, "s0_d1", out[0].ID)
	assert.Equal(t, "s1_d1", out[1].ID)
}

// ==========================
// View model
// ==========================

func viewFixture() []models.Match {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	m1 := match("d1", "s1", 80)
	m1.Demand.OrganizationName = "Busan Port"
	m1.Demand.RegisteredAt = late
	m1.Supplier.Industry = "제조업"
	m2 := match("d1", "s2", 40)
	m2.Demand = m1.Demand
	m2.Supplier.Industry = "정보통신업"
	m3 := match("d2", "s1", 70)
	m3.Demand.OrganizationName = "Seoul City"
	m3.Demand.RegisteredAt = early
	m3.Supplier = m1.Supplier
	m4 := match("d3", "s2", 30)
	m4.Demand.OrganizationName = "Andong Univ"
	m4.Demand.RegisteredAt = late.AddDate(0, 1, 0)
	m4.Supplier = m2.Supplier
	return []models.Match{m1, m2, m3, m4}
}

func TestGroup_Empty(t *testing.T) {
	groups := Group(nil, models.PerspectiveDemand)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestGroup_ByPerspective(t *testing.T) {
	matches := viewFixture()

	byDemand := Group(matches, models.PerspectiveDemand)
	require.Len(t, byDemand, 3)
	assert.Equal(t, "d2", byDemand[0].AnchorID)
	assert.InDelta(t, 70.0, byDemand[0].AverageScore, 0.001)
	assert.Equal(t, "d1", byDemand[1].AnchorID)
	assert.Equal(t, "Busan Port", byDemand[1].AnchorName)
	assert.InDelta(t, 60.0, byDemand[1].AverageScore, 0.001)
	assert.Equal(t, 80, byDemand[1].Matches[0].Score)
	assert.Equal(t, "d3", byDemand[2].AnchorID)

	bySupplier := Group(matches, models.PerspectiveSupplier)
	require.Len(t, bySupplier, 2)
	assert.Equal(t, "s1", bySupplier[0].AnchorID)
	assert.Equal(t, "co-s1", bySupplier[0].AnchorName)
	assert.InDelta(t, 75.0, bySupplier[0].AverageScore, 0.001)
	assert.InDelta(t, 35.0, bySupplier[1].AverageScore, 0.001)
}

func TestGroup_Exhaustive(t *testing.T) {
	matches := viewFixture()
	for _, p := range []models.Perspective{models.PerspectiveDemand, models.PerspectiveSupplier} {
		seen := map[string]int{}
		for _, g := range Group(matches, p) {
			for _, m := range g.Matches {
				assert.Equal(t, g.AnchorID, m.AnchorID(p))
				seen[m.ID]++
			}
		}
		assert.Len(t, seen, len(matches))
		for id, n := range seen {
			assert.Equal(t, 1, n, id)
		}
	}
}

func TestGroupAndSort(t *testing.T) {
	matches := viewFixture()

	tests := []struct {
		name     string
		opts     ViewOptions
		expected []string
	}{
		{
			name:     "defaults",
			opts:     ViewOptions{},
			expected: []string{"d2", "d1", "d3"},
		},
		{
			name:     "score ascending",
			opts:     ViewOptions{SortDirection: SortAsc},
			expected: []string{"d3", "d1", "d2"},
		},
		{
			name:     "name ascending",
			opts:     ViewOptions{SortField: SortByCompanyName, SortDirection: SortAsc},
			expected: []string{"d3", "d1", "d2"},
		},
		{
			name:     "registration date descending",
			opts:     ViewOptions{SortField: SortByRegistrationDate},
			expected: []string{"d3", "d1", "d2"},
		},
		{
			name:     "supplier industry filter",
			opts:     ViewOptions{Filters: Filters{Industry: "제조업"}},
			expected: []string{"d1", "d2"},
		},
		{
			name:     "search on anchor name",
			opts:     ViewOptions{Filters: Filters{Search: "CITY"}},
			expected: []string{"d2"},
		},
		{
			name:     "supplier perspective",
			opts:     ViewOptions{Perspective: models.PerspectiveSupplier, SortDirection: SortAsc},
			expected: []string{"s2", "s1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := GroupAndSort(matches, tt.opts)
			require.NoError(t, err)
			ids := make([]string, len(groups))
			for i, g := range groups {
				ids[i] = g.AnchorID
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestGroupAndSort_ScoreRange(t *testing.T) {
	lo, hi := 40, 70
	groups, err := GroupAndSort(viewFixture(), ViewOptions{Filters: Filters{MinScore: &lo, MaxScore: &hi}})
	require.NoError(t, err)

	var scores []int
	for _, g := range groups {
		for _, m := range g.Matches {
			scores = append(scores, m.Score)
		}
	}
	assert.ElementsMatch(t, []int{40, 70}, scores)
}

func TestGroupAndSort_InvalidOptions(t *testing.T) {
	_, err := GroupAndSort(nil, ViewOptions{Perspective: "region"})
	assert.ErrorIs(t, err, ErrInvalidPerspective)

	_, err = GroupAndSort(nil, ViewOptions{SortField: "budget"})
	assert.ErrorIs(t, err, ErrInvalidSortField)

	_, err = GroupAndSort(nil, ViewOptions{SortDirection: "up"})
	assert.ErrorIs(t, err, ErrInvalidSortDir)
}

func TestPresent_FlattensGroupsWithScoreOrderInside(t *testing.T) {
	out, err := Present(viewFixture(), ViewOptions{})
	require.NoError(t, err)

	ids := make([]string, len(out))
	for i, m := range out {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"s1_d2", "s1_d1", "s2_d1", "s2_d3"}, ids)
}

func TestPaginate(t *testing.T) {
	groups := Group(viewFixture(), models.PerspectiveDemand)

	page, total := Paginate(groups, 1, 2)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)

	page, _ = Paginate(groups, 2, 2)
	require.Len(t, page, 1)
	assert.Equal(t, "d3", page[0].AnchorID)

	page, _ = Paginate(groups, 5, 2)
	assert.Empty(t, page)

	page, _ = Paginate(groups, 0, 0)
	assert.Len(t, page, 3)
}
