package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: bizmatch
    user: bizmatch
  redis:
    address: localhost:6379
  elasticsearch:
    addresses: ["http://localhost:9200"]
extraction:
  base_url: ${TEST_EXTRACTION_URL}
workers:
  compute-matches:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("TEST_EXTRACTION_URL", "http://extractor:8000")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://extractor:8000", cfg.Extraction.BaseURL)
	assert.Equal(t, "keyword_weighted", cfg.Matching.Strategy)
	assert.Equal(t, 20, cfg.Matching.Threshold(20))
	assert.Equal(t, 5, cfg.Matching.DemandCap)
	assert.Equal(t, 5, cfg.Matching.SupplierCap)
	assert.Equal(t, 1, cfg.Matching.Parallelism)
	assert.Equal(t, 0.5, cfg.Matching.AnnotateBudget)
	assert.Equal(t, 1000, cfg.Extraction.Delay)
	assert.Equal(t, 2, cfg.Extraction.MaxRetries)
	assert.Equal(t, "bizmatch-matches", cfg.Database.Elasticsearch.MatchIndex)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)

	w := cfg.Workers["compute-matches"]
	assert.True(t, w.Enabled)
	assert.Equal(t, defaultWorkerMaxJobs, w.MaxJobsActive)
	assert.Equal(t, defaultWorkerTimeoutMs, w.Timeout)
}

func TestLoadFromFile_ExplicitZeroThreshold(t *testing.T) {
	t.Setenv("TEST_EXTRACTION_URL", "http://extractor:8000")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML+`
matching:
  minimum_score_threshold: 0
  parallelism: 4
`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Matching.Threshold(20))
	assert.Equal(t, 4, cfg.Matching.Parallelism)
}

func TestLoadFromFile_Validation(t *testing.T) {
	t.Setenv("TEST_EXTRACTION_URL", "http://extractor:8000")

	tests := []struct {
		name   string
		extra  string
		errMsg string
	}{
		{
			name:   "threshold out of range",
			extra:  "matching:\n  minimum_score_threshold: 150\n",
			errMsg: "minimum_score_threshold",
		},
		{
			name:   "annotate budget leaves nothing for scoring",
			extra:  "matching:\n  annotate_budget: 1\n",
			errMsg: "annotate_budget",
		},
		{
			name:   "sns without topic",
			extra:  "notifications:\n  sns:\n    enabled: true\n",
			errMsg: "topic_arn",
		},
		{
			name:   "ses without recipients",
			extra:  "notifications:\n  ses:\n    enabled: true\n    from_email: noreply@example.kr\n",
			errMsg: "recipients",
		},
		{
			name:   "tracing without endpoint",
			extra:  "tracing:\n  enabled: true\n",
			errMsg: "jaeger_endpoint",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, minimalYAML+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFile_MissingRequired(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "camunda:\n  broker_address: localhost:26500\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.postgres.host")
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"present-matches": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "present-matches"))
	assert.True(t, IsWorkerEnabled(cfg, "record-engagement"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "present-matches").MaxJobsActive)
	assert.Equal(t, defaultWorkerMaxJobs, GetWorkerConfig(cfg, "unknown").MaxJobsActive)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
