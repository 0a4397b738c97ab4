package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizmatch-workers/internal/common/logger"
	"bizmatch-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, logger.NewTestLogger(t)), mock
}

var supplierColumns = []string{
	"id", "company_name", "service_type", "industry", "description",
	"patent", "website", "video_link", "username", "registered_at",
	"extracted_keywords", "keyword_status",
}

var demandColumns = []string{
	"id", "organization_name", "department", "username", "type", "content",
	"budget", "start_date", "end_date", "additional_requirements", "registered_at",
	"extracted_keywords", "keyword_status",
}

// ==========================
// Fetch Tests
// ==========================

func TestFetchAllSuppliers(t *testing.T) {
	s, mock := newTestStore(t)
	registered := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(supplierColumns).
		AddRow("s1", "에이아이랩", "챗봇", "금융", "상담 챗봇", "특허 10-123", "https://ailab.kr", nil,
			"ailab", registered, "챗봇, 상담", "completed").
		AddRow("s2", "비전웍스", "컴퓨터비전", nil, nil, nil, nil, nil,
			"vision", nil, nil, nil)
	mock.ExpectQuery(`SELECT (.+) FROM suppliers ORDER BY registered_at DESC, id`).WillReturnRows(rows)

	suppliers, err := s.FetchAllSuppliers(context.Background())
	require.NoError(t, err)
	require.Len(t, suppliers, 2)

	assert.Equal(t, "에이아이랩", suppliers[0].CompanyName)
	assert.Equal(t, "https://ailab.kr", suppliers[0].Website)
	assert.Empty(t, suppliers[0].VideoLink)
	assert.Equal(t, registered, suppliers[0].RegisteredAt)
	assert.Equal(t, models.KeywordStatusCompleted, suppliers[0].KeywordStatus)
	assert.True(t, suppliers[0].HasKeywords())

	assert.Empty(t, suppliers[1].Industry)
	assert.False(t, suppliers[1].HasKeywords())
	assert.True(t, suppliers[1].RegisteredAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAllDemands_NullableColumns(t *testing.T) {
	s, mock := newTestStore(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(demandColumns).
		AddRow("d1", "서울시청", "민원과", "seoul", "챗봇", "민원 상담 자동화",
			5000000.0, start, nil, "온프레미스", start, "챗봇, 민원", "completed").
		AddRow("d2", "부산항만공사", nil, "busan", "물류", "컨테이너 인식",
			nil, nil, nil, nil, start, nil, "pending")
	mock.ExpectQuery(`SELECT (.+) FROM demands ORDER BY registered_at DESC, id`).WillReturnRows(rows)

	demands, err := s.FetchAllDemands(context.Background())
	require.NoError(t, err)
	require.Len(t, demands, 2)

	require.NotNil(t, demands[0].Budget)
	assert.Equal(t, 5000000.0, *demands[0].Budget)
	require.NotNil(t, demands[0].StartDate)
	assert.Equal(t, start, *demands[0].StartDate)
	assert.Nil(t, demands[0].EndDate)

	assert.Nil(t, demands[1].Budget)
	assert.Nil(t, demands[1].StartDate)
	assert.Empty(t, demands[1].Department)
	assert.Equal(t, models.KeywordStatusPending, demands[1].KeywordStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAllDemands_NegativeBudgetDropped(t *testing.T) {
	s, mock := newTestStore(t)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(demandColumns).
		AddRow("d1", "서울시청", nil, "seoul", "챗봇", "민원 상담", -1.0, nil, nil, nil, at, nil, "pending").
		AddRow("d2", "대구의료원", nil, "daegu", "의료", "영상 판독", 0.0, nil, nil, nil, at, nil, "pending")
	mock.ExpectQuery(`FROM demands`).WillReturnRows(rows)

	demands, err := s.FetchAllDemands(context.Background())
	require.NoError(t, err)
	require.Len(t, demands, 2)

	assert.Nil(t, demands[0].Budget)
	require.NotNil(t, demands[1].Budget)
	assert.Zero(t, *demands[1].Budget)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAll_Empty(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery(`FROM suppliers`).WillReturnRows(sqlmock.NewRows(supplierColumns))
	mock.ExpectQuery(`FROM demands`).WillReturnRows(sqlmock.NewRows(demandColumns))

	suppliers, err := s.FetchAllSuppliers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, suppliers)
	assert.Empty(t, suppliers)

	demands, err := s.FetchAllDemands(context.Background())
	require.NoError(t, err)
	assert.Empty(t, demands)
}

func TestFetchAll_QueryError(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery(`FROM suppliers`).WillReturnError(errors.New("connection reset"))

	_, err := s.FetchAllSuppliers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query suppliers")
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad conn", fmt.Errorf("query suppliers: %w", driver.ErrBadConn), true},
		{"conn done", sql.ErrConnDone, true},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"statement", errors.New(`pq: relation "suppliers" does not exist`), false},
		{"not found", ErrRecordNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}

// ==========================
// Update Tests
// ==========================

func TestUpdateKeywords(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		update  func(s *PostgresStore) error
		result  func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name:  "supplier completed",
			table: "suppliers",
			update: func(s *PostgresStore) error {
				return s.UpdateSupplierKeywords(context.Background(), "s1", " 챗봇, 상담 ")
			},
			result: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE suppliers SET extracted_keywords = \$1, keyword_status = \$2 WHERE id = \$3`).
					WithArgs("챗봇, 상담", "completed", "s1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:  "demand completed",
			table: "demands",
			update: func(s *PostgresStore) error {
				return s.UpdateDemandKeywords(context.Background(), "d1", "민원, 자동화")
			},
			result: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE demands SET`).
					WithArgs("민원, 자동화", "completed", "d1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:  "missing row",
			table: "demands",
			update: func(s *PostgresStore) error {
				return s.UpdateDemandKeywords(context.Background(), "ghost", "x")
			},
			result: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE demands SET`).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: ErrRecordNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newTestStore(t)
			tt.result(mock)

			err := tt.update(s)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
