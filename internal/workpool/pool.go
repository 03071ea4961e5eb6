// Package workpool runs independent tasks on a bounded ants goroutine pool.
//
// Queries are read-only against their snapshots, so the CLI and the
// conformance harness fan them out here and collect results by index.
package workpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// releaseTimeout bounds how long Run waits for idle workers to exit.
const releaseTimeout = 3 * time.Second

// Task processes item i. It must be safe to call concurrently with other
// indices.
type Task func(ctx context.Context, i int) error

// Option configures Run.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report recovered panics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Run calls task for every index in [0, n) using at most workers
// goroutines, and returns one error slot per index. workers <= 1 runs
// sequentially on the calling goroutine.
//
// A panicking task is recovered and reported as that index's error. Once
// ctx is done, indices not yet started get ctx.Err().
func Run(ctx context.Context, workers, n int, task Task, opts ...Option) []error {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	errs := make([]error, n)
	if workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			errs[i] = runOne(ctx, task, i)
		}
		return errs
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		cfg.logger.Error("task panic", "panic", v)
	}))
	if err != nil {
		// Fall back to sequential execution rather than failing the batch.
		cfg.logger.Warn("worker pool unavailable, running sequentially", "error", err)
		for i := 0; i < n; i++ {
			errs[i] = runOne(ctx, task, i)
		}
		return errs
	}
	defer func() {
		_ = pool.ReleaseTimeout(releaseTimeout)
	}()

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			errs[i] = runOne(ctx, task, i)
		}); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit task %d: %w", i, err)
		}
	}
	wg.Wait()
	return errs
}

func runOne(ctx context.Context, task Task, i int) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("task %d panicked: %v", i, v)
		}
	}()
	return task(ctx, i)
}
