// internal/matching/orchestrator.go
package matching

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bizmatch-workers/internal/models"
)

const DefaultMinimumScoreThreshold = 20

var ErrDuplicatePair = errors.New("duplicate supplier/demand pair")

// Orchestrator scores the full demand × supplier cross-product.
type Orchestrator struct {
	Strategy              ScoringStrategy
	MinimumScoreThreshold int
	// Parallelism > 1 scores demands concurrently; output order is unchanged.
	Parallelism int
}

// NewOrchestrator returns an orchestrator with the canonical strategy and default threshold.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		Strategy:              KeywordWeighted{},
		MinimumScoreThreshold: DefaultMinimumScoreThreshold,
		Parallelism:           1,
	}
}

// ComputeAllMatches scores demands × suppliers with the default orchestrator.
func ComputeAllMatches(demands []models.Demand, suppliers []models.Supplier) ([]models.Match, error) {
	return NewOrchestrator().ComputeAllMatches(context.Background(), demands, suppliers)
}

// ComputeAllMatches returns every pair scoring above zero and at or above the threshold,
// in demand-major computation order.
func (o *Orchestrator) ComputeAllMatches(ctx context.Context, demands []models.Demand, suppliers []models.Supplier) ([]models.Match, error) {
	if len(demands) == 0 || len(suppliers) == 0 {
		return []models.Match{}, nil
	}

	if err := checkUniqueIDs(demands, suppliers); err != nil {
		return nil, err
	}

	strategy := o.Strategy
	if strategy == nil {
		strategy = KeywordWeighted{}
	}

	perDemand := make([][]models.Match, len(demands))
	scoreRow := func(i int) {
		row := make([]models.Match, 0, len(suppliers))
		for _, s := range suppliers {
			m := strategy.ScorePair(demands[i], s)
			if m.Score > 0 && m.Score >= o.MinimumScoreThreshold {
				row = append(row, m)
			}
		}
		perDemand[i] = row
	}

	if o.Parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.Parallelism)
		for i := range demands {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scoreRow(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range demands {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scoreRow(i)
		}
	}

	out := make([]models.Match, 0, len(demands))
	for _, row := range perDemand {
		out = append(out, row...)
	}
	return out, nil
}

// checkUniqueIDs rejects inputs whose cross-product would repeat a composite id.
func checkUniqueIDs(demands []models.Demand, suppliers []models.Supplier) error {
	seen := make(map[string]bool, len(demands))
	for _, d := range demands {
		if seen[d.ID] {
			return fmt.Errorf("%w: demand %s listed twice", ErrDuplicatePair, d.ID)
		}
		seen[d.ID] = true
	}
	seen = make(map[string]bool, len(suppliers))
	for _, s := range suppliers {
		if seen[s.ID] {
			return fmt.Errorf("%w: supplier %s listed twice", ErrDuplicatePair, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
