package probability

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/incentedge/match-engine/internal/model"
)

// BatchOptions bounds concurrent scoring of one project against many
// programs.
type BatchOptions struct {
	// Concurrency is the number of parallel scorer workers. Zero means 4.
	Concurrency int
	// QPS rate-limits store queries across workers. Zero means unlimited.
	QPS float64
}

// BatchItem pairs a program with its scoring outcome.
type BatchItem struct {
	ProgramID string                   `json:"program_id"`
	Result    *model.ProbabilityResult `json:"result"`
}

// ScoreBatch scores the project against every program ID, preserving input
// order in the returned slice. The first store failure cancels remaining
// work.
func (s *Scorer) ScoreBatch(ctx context.Context, project *model.Project, programIDs []string, opts BatchOptions) ([]BatchItem, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var limiter *rate.Limiter
	if opts.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.QPS), 1)
	}

	items := make([]BatchItem, len(programIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, programID := range programIDs {
		i, programID := i, programID
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return eris.Wrap(err, "probability: rate limiter")
				}
			}
			result, err := s.Score(gctx, model.InputForPair(project, programID))
			if err != nil {
				return eris.Wrapf(err, "probability: score program %s", programID)
			}
			items[i] = BatchItem{ProgramID: programID, Result: result}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
