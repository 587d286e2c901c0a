package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Runner executes background work that must outlive the request that
// started it.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{ctx: ctx, cancel: cancel, logger: logger}
}

// Go runs fn on its own goroutine with the runner's context.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background task panicked", zap.String("task", name), zap.Any("panic", rec))
			}
		}()
		if err := fn(r.ctx); err != nil {
			r.logger.Error("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every task started so far has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown waits for running tasks until ctx expires, then cancels them.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
