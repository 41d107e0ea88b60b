package control

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Worker is anything with a blocking Run(ctx) that returns when ctx is
// cancelled (the keypad/button scanners, a crossing's lamp task, ...).
type Worker interface {
	Run(ctx context.Context)
}

// StartWorkers launches every worker under one errgroup and blocks until
// ctx is cancelled and all workers return, or until joinTimeout elapses
// after cancellation — whichever comes first (§5 "a worker that does not
// stop within its join window is killed", reused here for the bounded
// fan-out/fan-in of heterogeneous per-hardware-region tasks described in
// §2's component list).
func StartWorkers(ctx context.Context, joinTimeout time.Duration, workers ...Worker) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	<-ctx.Done()
	select {
	case err := <-done:
		return err
	case <-time.After(joinTimeout):
		return context.DeadlineExceeded
	}
}
