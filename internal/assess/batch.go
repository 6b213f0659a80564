package assess

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchLimit bounds the number of attempts assessed at once when the
// caller passes no limit.
const DefaultBatchLimit = 4

// BatchResult is the outcome of one attempt in a batch. Exactly one of
// Outcome and Err is meaningful.
type BatchResult struct {
	Outcome Outcome
	Err     error
}

// Batch assesses attempts with at most limit running concurrently. Results
// are in input order. A failed attempt does not stop the others; only a done
// ctx does, in which case its error is returned and unstarted attempts carry
// it as their Err.
func (s *Service) Batch(ctx context.Context, attempts []Attempt, limit int) ([]BatchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	results := make([]BatchResult, len(attempts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, a := range attempts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			out, err := s.Assess(gctx, a)
			results[i] = BatchResult{Outcome: out, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
