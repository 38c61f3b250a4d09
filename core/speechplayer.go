package orchestration

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type speechPlayerCallbacks struct {
	// onBusy is called when playback starts from idle
	onBusy func()
	// onPlayed is called for every sentence that finished playing
	onPlayed func(sentence string)
	// onDrained is called each time the queue runs empty after playing.
	// degraded is set when sentences were discarded after a failure.
	onDrained func(degraded bool)
}

// speechPlayer plays the sentences of one turn, strictly one at a time and
// in enqueue order.
//
// All methods except the spawned Speak calls must run on the session event
// loop. Speak results are handed back to the loop through post.
type speechPlayer struct {
	ctx         context.Context
	synthesizer texttospeech.SpeechSynthesizer
	post        func(func())
	callbacks   speechPlayerCallbacks

	pending   []string
	busy      bool
	cancelled bool

	cancelInFlight context.CancelFunc
}

func newSpeechPlayer(ctx context.Context, synthesizer texttospeech.SpeechSynthesizer, post func(func()), callbacks speechPlayerCallbacks) *speechPlayer {
	if callbacks.onBusy == nil {
		callbacks.onBusy = func() {}
	}
	if callbacks.onPlayed == nil {
		callbacks.onPlayed = func(string) {}
	}
	if callbacks.onDrained == nil {
		callbacks.onDrained = func(bool) {}
	}

	return &speechPlayer{
		ctx:         ctx,
		synthesizer: synthesizer,
		post:        post,
		callbacks:   callbacks,
	}
}

// Enqueue appends sentence and starts playback if the player is idle.
func (p *speechPlayer) Enqueue(sentence string) {
	if p.cancelled {
		return
	}

	p.pending = append(p.pending, sentence)
	if !p.busy {
		p.busy = true
		p.callbacks.onBusy()
		p.playNext()
	}
}

// Busy reports whether a sentence is playing or waiting to be played.
func (p *speechPlayer) Busy() bool {
	return p.busy
}

// Cancel discards every pending sentence and stops the one in flight without
// reporting a drain. The player ignores all further calls and results.
func (p *speechPlayer) Cancel() {
	if p.cancelled {
		return
	}

	p.cancelled = true
	p.pending = nil
	p.busy = false
	if p.cancelInFlight != nil {
		p.cancelInFlight()
		p.cancelInFlight = nil
	}
}

func (p *speechPlayer) playNext() {
	sentence := p.pending[0]
	p.pending = p.pending[1:]

	ctx, cancel := context.WithCancel(p.ctx)
	p.cancelInFlight = cancel

	speak := panicSafeNamedWorker("speech synthesis", func(ctx context.Context) error {
		return p.synthesizer.Speak(ctx, sentence)
	})
	go func() {
		err := speak(ctx)
		p.post(func() { p.finished(sentence, err) })
	}()
}

func (p *speechPlayer) finished(sentence string, err error) {
	if p.cancelled {
		return
	}

	if p.cancelInFlight != nil {
		p.cancelInFlight()
		p.cancelInFlight = nil
	}

	if err != nil {
		discarded := len(p.pending)
		logger.Warn("speech synthesis failed, discarding remaining sentences",
			"error", err,
			"discarded_sentences", discarded)
		reason := "failed"
		if errors.Is(err, context.Canceled) {
			reason = "cancelled"
		}
		synthesisFailures.Add(p.ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))

		p.pending = nil
		p.busy = false
		p.callbacks.onDrained(true)
		return
	}

	p.callbacks.onPlayed(sentence)
	if len(p.pending) > 0 {
		p.playNext()
		return
	}

	p.busy = false
	p.callbacks.onDrained(false)
}
