package recordengagement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizmatch-workers/internal/cache"
	commonerrors "bizmatch-workers/internal/common/errors"
	"bizmatch-workers/internal/common/logger"
)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func newMiniredisHandler(t *testing.T) (*Handler, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHandler(createTestConfig(), cache.NewEngagement(client), logger.NewTestLogger(t)), mr
}

func assertErrorCode(t *testing.T, err error, code commonerrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var stdErr *commonerrors.StandardError
	require.True(t, errors.As(err, &stdErr), "expected StandardError, got %T", err)
	assert.Equal(t, code, stdErr.Code)
}

func TestExecute_CountsAccumulate(t *testing.T) {
	h, mr := newMiniredisHandler(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.Execute(ctx, &Input{MatchID: "s1_d1", Kind: cache.EngagementInterest})
		require.NoError(t, err)
	}
	out, err := h.Execute(ctx, &Input{MatchID: " s1_d1 ", Kind: cache.EngagementComment})
	require.NoError(t, err)

	assert.Equal(t, "s1_d1", out.MatchID)
	assert.Equal(t, cache.EngagementComment, out.Kind)
	assert.Equal(t, int64(1), out.Count)
	assert.Equal(t, int64(2), out.Interest)
	assert.Equal(t, int64(1), out.Comment)
	assert.Equal(t, "2", mr.HGet("matching:engagement:s1_d1", "interest"))
}

func TestExecute_InvalidInput(t *testing.T) {
	h, _ := newMiniredisHandler(t)

	tests := []struct {
		name  string
		input *Input
	}{
		{"blank match id", &Input{MatchID: "  ", Kind: cache.EngagementInterest}},
		{"unknown kind", &Input{MatchID: "s1_d1", Kind: "like"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			assertErrorCode(t, err, commonerrors.ErrCodeInvalidInput)
		})
	}
}

func TestExecute_CacheFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectHIncrBy("matching:engagement:s1_d1", "interest", 1).SetErr(errors.New("connection refused"))

	h := NewHandler(createTestConfig(), cache.NewEngagement(client), logger.NewTestLogger(t))
	_, err := h.Execute(context.Background(), &Input{MatchID: "s1_d1", Kind: cache.EngagementInterest})

	assertErrorCode(t, err, commonerrors.ErrCodeCacheFailed)
	assert.True(t, commonerrors.AsStandardError(err).Retryable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name  string
		vars  map[string]interface{}
		valid bool
	}{
		{"interest", map[string]interface{}{"matchId": "s1_d1", "kind": "interest"}, true},
		{"comment", map[string]interface{}{"matchId": "s1_d1", "kind": "comment"}, true},
		{"missing kind", map[string]interface{}{"matchId": "s1_d1"}, false},
		{"unknown kind", map[string]interface{}{"matchId": "s1_d1", "kind": "like"}, false},
		{"empty match id", map[string]interface{}{"matchId": "", "kind": "interest"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := inputSchema.Validate(tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
		})
	}
}
