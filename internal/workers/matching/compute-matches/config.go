// internal/workers/matching/compute-matches/config.go
package computematches

import (
	"time"

	"bizmatch-workers/internal/common/config"
	"bizmatch-workers/internal/matching"
)

type Config struct {
	Timeout               time.Duration
	Strategy              string
	MinimumScoreThreshold int
	DemandCap             int
	SupplierCap           int
	Parallelism           int
	// AnnotateBudget is the share of the job deadline keyword extraction may use.
	AnnotateBudget float64
	// SummaryTopMatches is how many matches the run summary email lists.
	SummaryTopMatches int
}

func LoadConfig(cfg *config.Config) *Config {
	w := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:               config.GetDuration(w.Timeout),
		Strategy:              cfg.Matching.Strategy,
		MinimumScoreThreshold: cfg.Matching.Threshold(matching.DefaultMinimumScoreThreshold),
		DemandCap:             cfg.Matching.DemandCap,
		SupplierCap:           cfg.Matching.SupplierCap,
		Parallelism:           cfg.Matching.Parallelism,
		AnnotateBudget:        cfg.Matching.AnnotateBudget,
		SummaryTopMatches:     10,
	}
}
