package orchestration

import (
	"context"
	"fmt"
	"sync"
)

// withContextCancelHook calls onContextDone once ctx is done, unless stop
// is closed first.
func withContextCancelHook(ctx context.Context, stop <-chan struct{}, onContextDone func()) {
	go func() {
		select {
		case <-ctx.Done():
			onContextDone()
		case <-stop:
		}
	}()
}

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// orderedCalls runs each call in the background, one after another in the
// order they were submitted.
type orderedCalls struct {
	mu   sync.Mutex
	tail chan struct{}
}

func (c *orderedCalls) run(call func()) {
	c.mu.Lock()
	previous := c.tail
	done := make(chan struct{})
	c.tail = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		if previous != nil {
			<-previous
		}
		call()
	}()
}
