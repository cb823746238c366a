package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
)

// FetchFunc fetches one task.
type FetchFunc func(ctx context.Context, task domain.Task) (domain.HourInventory, error)

// FetchAll runs fetch for every task on at most workers goroutines and
// returns the results in task order. The first failure cancels the remaining
// fetches and is returned once every started fetch has finished.
func FetchAll(ctx context.Context, tasks []domain.Task, workers int, fetch FetchFunc) ([]domain.HourInventory, error) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	out := make([]domain.HourInventory, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			part, err := fetch(gCtx, task)
			if err != nil {
				return err
			}
			out[i] = part
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
