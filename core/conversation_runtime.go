package orchestration

import (
	"sync"
	"sync/atomic"
	"time"
)

const sessionEventQueueCapacity = 64

type eventQueueItem struct {
	run      func()
	queuedAt time.Time
}

// sessionRuntime runs every state mutation of a session on one goroutine.
// Collaborators never touch session state directly, they post closures.
type sessionRuntime struct {
	queue   chan eventQueueItem
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

func newSessionRuntime() *sessionRuntime {
	return &sessionRuntime{
		queue:   make(chan eventQueueItem, sessionEventQueueCapacity),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (runtime *sessionRuntime) start() (started bool) {
	if runtime.isClosed() {
		return false
	}

	runtime.startOnce.Do(func() {
		if runtime.isClosed() {
			return
		}

		started = true
		runtime.started.Store(true)
		go func() {
			defer close(runtime.done)

			for {
				select {
				case <-runtime.closeCh:
					return
				case item := <-runtime.queue:
					if runtime.isClosed() {
						return
					}
					runtime.process(item)
				}
			}
		}()
	})

	return started
}

func (runtime *sessionRuntime) process(item eventQueueItem) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("session event panicked", "panic", recovered)
		}
	}()

	if queuedFor := time.Since(item.queuedAt); queuedFor > time.Second {
		logger.Warn("session event waited long in queue",
			"queued_time", queuedFor.Seconds(),
			"queued_events", runtime.queuedEventCount())
	}
	item.run()
}

func (runtime *sessionRuntime) end() {
	runtime.endOnce.Do(func() {
		close(runtime.closeCh)
	})
}

func (runtime *sessionRuntime) waitUntilEnded() {
	if runtime.started.Load() {
		<-runtime.done
	}
}

// post queues run for the event loop. Posts made before start are kept
// until the loop starts. It reports false once the runtime is closed.
func (runtime *sessionRuntime) post(run func()) bool {
	if runtime.isClosed() {
		return false
	}

	item := eventQueueItem{run: run, queuedAt: time.Now()}
	select {
	case <-runtime.closeCh:
		return false
	case runtime.queue <- item:
		return true
	}
}

func (runtime *sessionRuntime) isClosed() bool {
	select {
	case <-runtime.closeCh:
		return true
	default:
		return false
	}
}

func (runtime *sessionRuntime) queuedEventCount() int {
	return len(runtime.queue)
}
