// internal/workers/matching/present-matches/config.go
package presentmatches

import (
	"time"

	"bizmatch-workers/internal/common/config"
)

type Config struct {
	Timeout         time.Duration
	DefaultPageSize int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:         config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
		DefaultPageSize: 20,
	}
}
