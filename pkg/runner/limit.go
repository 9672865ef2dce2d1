package runner

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// limitedRunner caps how many executions run at the same time.
type limitedRunner struct {
	next Runner
	sem  *semaphore.Weighted
}

// WithConcurrencyLimit wraps r so at most n executions are in flight. Callers
// beyond the limit wait for a slot or for ctx to end. n <= 0 disables the cap.
func WithConcurrencyLimit(r Runner, n int64) Runner {
	if n <= 0 {
		return r
	}
	return &limitedRunner{next: r, sem: semaphore.NewWeighted(n)}
}

func (l *limitedRunner) RunTests(ctx context.Context, req TestRequest) (Result, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer l.sem.Release(1)
	return l.next.RunTests(ctx, req)
}

func (l *limitedRunner) RunScript(ctx context.Context, req ScriptRequest) (Result, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer l.sem.Release(1)
	return l.next.RunScript(ctx, req)
}
