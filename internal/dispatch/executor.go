package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/homework-solver/internal/entity"
)

// Task dispatches one major question.
type Task func(ctx context.Context) entity.DispatchOutcome

// Executor runs tasks and returns their outcomes at the tasks' indices,
// whatever order they complete in.
type Executor interface {
	Execute(ctx context.Context, tasks []Task) []entity.DispatchOutcome
}

// Sequential runs tasks one after another.
type Sequential struct{}

func (Sequential) Execute(ctx context.Context, tasks []Task) []entity.DispatchOutcome {
	out := make([]entity.DispatchOutcome, len(tasks))
	for i, t := range tasks {
		out[i] = t(ctx)
	}
	return out
}

// Pool runs up to Limit tasks at once. Tasks must not share mutable state.
type Pool struct {
	Limit int
}

func (p Pool) Execute(ctx context.Context, tasks []Task) []entity.DispatchOutcome {
	out := make([]entity.DispatchOutcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(max(p.Limit, 1))
	for i, t := range tasks {
		g.Go(func() error {
			out[i] = t(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// NewExecutor returns Sequential for concurrency <= 1 and a Pool otherwise.
func NewExecutor(concurrency int) Executor {
	if concurrency <= 1 {
		return Sequential{}
	}
	return Pool{Limit: concurrency}
}
