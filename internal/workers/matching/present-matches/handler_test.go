package presentmatches

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bizmatch-workers/internal/cache"
	commonerrors "bizmatch-workers/internal/common/errors"
	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/matching"
	"bizmatch-workers/internal/models"
)

type MockRuns struct {
	mock.Mock
}

func (m *MockRuns) Load(ctx context.Context, runID string) (*cache.Run, error) {
	args := m.Called(ctx, runID)
	run, _ := args.Get(0).(*cache.Run)
	return run, args.Error(1)
}

type MockEngagement struct {
	mock.Mock
}

func (m *MockEngagement) Counts(ctx context.Context, ids []string) (map[string]cache.Counts, error) {
	args := m.Called(ctx, ids)
	c, _ := args.Get(0).(map[string]cache.Counts)
	return c, args.Error(1)
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, DefaultPageSize: 20}
}

func match(demandID, demandName, supplierID, supplierName, industry string, score int) models.Match {
	return models.Match{
		ID:       models.MatchID(supplierID, demandID),
		Demand:   models.Demand{ID: demandID, OrganizationName: demandName},
		Supplier: models.Supplier{ID: supplierID, CompanyName: supplierName, Industry: industry},
		Score:    score,
	}
}

// createMatches yields demand groups averaging d2=90, d1=70, d3=30.
func createMatches() []models.Match {
	return []models.Match{
		match("d1", "서울시청", "s1", "Alpha AI", "정보통신업", 80),
		match("d1", "서울시청", "s2", "Beta Lab", "제조업", 60),
		match("d2", "부산항만공사", "s1", "Alpha AI", "정보통신업", 90),
		match("d3", "대구의료원", "s2", "Beta Lab", "제조업", 30),
	}
}

func matchIDs(ms []models.Match) []string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}

func assertErrorCode(t *testing.T, err error, code commonerrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var stdErr *commonerrors.StandardError
	require.True(t, errors.As(err, &stdErr), "expected StandardError, got %T", err)
	assert.Equal(t, code, stdErr.Code)
}

func TestExecute_FromCachedRun(t *testing.T) {
	runs := new(MockRuns)
	engagement := new(MockEngagement)
	runs.On("Load", mock.Anything, "run-1").Return(&cache.Run{ID: "run-1", Matches: createMatches()}, nil)
	engagement.On("Counts", mock.Anything, []string{"s1_d2", "s1_d1", "s2_d1"}).
		Return(map[string]cache.Counts{"s1_d2": {Interest: 2, Comment: 1}}, nil)

	h := NewHandler(createTestConfig(), runs, engagement, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{RunID: "run-1", Page: 1, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, models.PerspectiveDemand, out.Perspective)
	assert.Equal(t, 3, out.TotalGroups)
	require.Len(t, out.Groups, 2)
	assert.Equal(t, "d2", out.Groups[0].AnchorID)
	assert.Equal(t, "d1", out.Groups[1].AnchorID)
	assert.Equal(t, []string{"s1_d2", "s1_d1", "s2_d1"}, matchIDs(out.Matches))
	assert.Equal(t, int64(2), out.Engagement["s1_d2"].Interest)

	runs.AssertExpectations(t)
	engagement.AssertExpectations(t)
}

func TestExecute_InlineMatches(t *testing.T) {
	h := NewHandler(createTestConfig(), new(MockRuns), nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Matches:       createMatches(),
		Perspective:   models.PerspectiveSupplier,
		SortField:     matching.SortByCompanyName,
		SortDirection: matching.SortAsc,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 20, out.PageSize)
	require.Len(t, out.Groups, 2)
	assert.Equal(t, "s1", out.Groups[0].AnchorID)
	assert.Equal(t, "s2", out.Groups[1].AnchorID)
	assert.Equal(t, []string{"s1_d2", "s1_d1", "s2_d1", "s2_d3"}, matchIDs(out.Matches))
	assert.Nil(t, out.Engagement)
}

func TestExecute_Filters(t *testing.T) {
	h := NewHandler(createTestConfig(), new(MockRuns), nil, logger.NewTestLogger(t))
	minScore := 50

	tests := []struct {
		name    string
		filters matching.Filters
		want    []string
	}{
		{"industry", matching.Filters{Industry: "제조업"}, []string{"s2_d1", "s2_d3"}},
		{"min score", matching.Filters{MinScore: &minScore}, []string{"s1_d2", "s1_d1", "s2_d1"}},
		{"search anchor name", matching.Filters{Search: "부산"}, []string{"s1_d2"}},
		{"no hits", matching.Filters{Search: "없음"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Execute(context.Background(), &Input{Matches: createMatches(), Filters: tt.filters})
			require.NoError(t, err)
			assert.Equal(t, tt.want, matchIDs(out.Matches))
		})
	}
}

func TestExecute_PageBeyondEnd(t *testing.T) {
	h := NewHandler(createTestConfig(), new(MockRuns), nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Matches: createMatches(), Page: 5, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, models.PerspectiveDemand, out.Perspective)
	assert.Empty(t, out.Groups)
	assert.Empty(t, out.Matches)
	assert.Equal(t, 3, out.TotalGroups)
}

func TestExecute_EngagementErrorIsNotFatal(t *testing.T) {
	engagement := new(MockEngagement)
	engagement.On("Counts", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	h := NewHandler(createTestConfig(), new(MockRuns), engagement, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Matches: createMatches()})
	require.NoError(t, err)
	assert.Len(t, out.Matches, 4)
	assert.Nil(t, out.Engagement)
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   *Input
		loadErr error
		code    commonerrors.ErrorCode
	}{
		{"run missing", &Input{RunID: "gone"}, cache.ErrRunNotFound, commonerrors.ErrCodeRunNotFound},
		{"cache down", &Input{RunID: "run-1"}, errors.New("connection refused"), commonerrors.ErrCodeCacheFailed},
		{"no source", &Input{}, nil, commonerrors.ErrCodeInvalidInput},
		{"bad perspective", &Input{Matches: createMatches(), Perspective: "buyer"}, nil, commonerrors.ErrCodeInvalidInput},
		{"bad sort field", &Input{Matches: createMatches(), SortField: "budget"}, nil, commonerrors.ErrCodeInvalidInput},
		{"bad sort direction", &Input{Matches: createMatches(), SortDirection: "sideways"}, nil, commonerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := new(MockRuns)
			if tt.input.RunID != "" {
				runs.On("Load", mock.Anything, tt.input.RunID).Return(nil, tt.loadErr)
			}
			h := NewHandler(createTestConfig(), runs, nil, logger.NewTestLogger(t))

			_, err := h.Execute(context.Background(), tt.input)
			assertErrorCode(t, err, tt.code)
		})
	}
}

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name  string
		vars  map[string]interface{}
		valid bool
	}{
		{"run id", map[string]interface{}{"runId": "run-1"}, true},
		{"inline matches", map[string]interface{}{"matches": []interface{}{}}, true},
		{"neither", map[string]interface{}{"page": 1}, false},
		{"bad perspective", map[string]interface{}{"runId": "r", "perspective": "buyer"}, false},
		{"page zero", map[string]interface{}{"runId": "r", "page": 0}, false},
		{"min score out of range", map[string]interface{}{"runId": "r", "filters": map[string]interface{}{"minScore": 101}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := inputSchema.Validate(tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
		})
	}
}
