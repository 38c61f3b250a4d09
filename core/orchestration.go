package orchestration

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

const (
	textOnlyNotice  = "Text-to-speech is not available. Answers will be text-only."
	typedOnlyNotice = "Voice input is not available. Type your question instead."
)

// Orchestrator runs a voice session: it captures a question, streams the
// answer, speaks it sentence by sentence and listens again once both the
// answer and its playback are done.
//
// All exported methods are safe for concurrent use. They only queue work for
// the session event loop, which starts with [Orchestrator.Orchestrate].
type Orchestrator struct {
	answerStream  AnswerStreamer
	speechCapture SpeechCapture
	synthesizer   texttospeech.SpeechSynthesizer

	speaking atomic.Bool
	state    atomic.Int32

	runtime      *sessionRuntime
	conversation conversation

	// owned by the event loop
	turn           *activeTurn
	captureSession uint64
	captureCalls   orderedCalls
	// set once capture failed as unsupported, capture is not retried
	captureUnsupported bool
	lastError      *SessionError

	emit               eventEmitter
	orchestrateOptions OrchestrateOptions
	baseContext        context.Context

	orchestrateOnce sync.Once
	closeOnce       sync.Once
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		runtime:     newSessionRuntime(),
		emit:        noopEventEmitter,
		baseContext: context.Background(),
	}
	o.speaking.Store(true)

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Orchestrate starts the session event loop.
//
// ctx is the base context of every turn and capture session. Cancelling it
// closes the orchestrator. Only the first call has any effect.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	if o.runtime.isClosed() {
		logger.Warn("orchestrator already closed, skipping Orchestrate")
		return
	}

	o.orchestrateOnce.Do(func() {
		for _, opt := range opts {
			opt(&o.orchestrateOptions)
		}
		o.emit = newCallbackEventEmitter(o.orchestrateOptions)
		o.baseContext = ctx

		if o.synthesizer == nil {
			o.runtime.post(func() { o.emit(events.NewSessionNotice(textOnlyNotice)) })
		}

		if started := o.runtime.start(); started {
			withContextCancelHook(ctx, o.runtime.closeCh, o.Close)
		}
	})
}

// Close cancels any active turn, stops capture and ends the event loop.
//
// Close must not be called from an [OrchestrateOption] callback.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		if o.runtime.started.Load() {
			shutdownDone := make(chan struct{})
			if o.runtime.post(func() {
				defer close(shutdownDone)
				o.shutdown()
			}) {
				<-shutdownDone
			}
		}

		o.runtime.end()
		o.runtime.waitUntilEnded()
	})
}

// State returns the current session state.
func (o *Orchestrator) State() SessionState {
	return SessionState(o.state.Load())
}

// Snapshot returns a point-in-time copy of the session and its history.
func (o *Orchestrator) Snapshot() Conversation {
	return o.conversation.Snapshot()
}

// StartListening starts capturing a question. Ignored unless the session is
// idle.
func (o *Orchestrator) StartListening() {
	o.runtime.post(o.startListening)
}

// StopListening stops capture without a result.
func (o *Orchestrator) StopListening() {
	o.runtime.post(o.stopListening)
}

// SubmitQuestion starts a turn for a typed question, stopping capture first
// if needed. Ignored while a turn is processing or the session failed.
func (o *Orchestrator) SubmitQuestion(question string) {
	question = strings.TrimSpace(question)
	if question == "" {
		return
	}
	o.runtime.post(func() { o.submitQuestion(question) })
}

// Cancel aborts the active turn or capture and returns to idle.
func (o *Orchestrator) Cancel() {
	o.runtime.post(o.cancel)
}

// Retry clears a session error and returns to idle.
func (o *Orchestrator) Retry() {
	o.runtime.post(o.retry)
}

// PrimaryAction performs the single control of the session: start listening
// when idle, stop listening, cancel the turn or retry after an error.
func (o *Orchestrator) PrimaryAction() {
	o.runtime.post(o.primaryAction)
}

// SetSpeaking enables or mutes spoken answers for turns started afterwards.
func (o *Orchestrator) SetSpeaking(isSpeaking bool) {
	o.speaking.Store(isSpeaking)
}

func (o *Orchestrator) IsSpeaking() bool {
	return o.speaking.Load() && o.synthesizer != nil
}
