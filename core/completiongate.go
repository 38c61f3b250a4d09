package orchestration

import "sync"

// completionGate fires onReady once per turn, as soon as both the answer
// stream and playback are done, in whichever order they finish.
type completionGate struct {
	mu           sync.Mutex
	streamDone   bool
	playbackDone bool
	fired        bool
	onReady      func()
}

func newCompletionGate(onReady func()) *completionGate {
	if onReady == nil {
		onReady = func() {}
	}
	return &completionGate{onReady: onReady}
}

func (g *completionGate) MarkStreamDone() {
	g.mark(func() { g.streamDone = true })
}

func (g *completionGate) MarkPlaybackDone() {
	g.mark(func() { g.playbackDone = true })
}

// RearmPlayback clears playbackDone when playback starts again before the
// gate fired, so a drain in the middle of the stream cannot complete the
// turn while later sentences still play.
func (g *completionGate) RearmPlayback() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.fired {
		g.playbackDone = false
	}
}

func (g *completionGate) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}

func (g *completionGate) mark(set func()) {
	g.mu.Lock()
	set()
	ready := g.streamDone && g.playbackDone && !g.fired
	if ready {
		g.fired = true
	}
	g.mu.Unlock()

	if ready {
		g.onReady()
	}
}
