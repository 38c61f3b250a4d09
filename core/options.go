package orchestration

import (
	"context"

	"github.com/koscakluka/ema-voice/core/answers"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

// AnswerStreamer streams the answer to a question. See
// [answers.Client.StreamAnswer] for the callback contract.
type AnswerStreamer interface {
	StreamAnswer(ctx context.Context, question string, opts ...answers.StreamOption)
}

func WithAnswerStream(client AnswerStreamer) OrchestratorOption {
	return func(o *Orchestrator) { o.answerStream = client }
}

// SpeechCapture captures one utterance per listening session and reports
// exactly one of a transcript, an ending without result or an error.
type SpeechCapture interface {
	Available() bool
	StartListening(ctx context.Context, opts ...speechtotext.CaptureOption) error
	StopListening() error
}

func WithSpeechCapture(client SpeechCapture) OrchestratorOption {
	return func(o *Orchestrator) { o.speechCapture = client }
}

// WithSynthesizer enables spoken answers. Without a synthesizer every answer
// is text-only.
func WithSynthesizer(client texttospeech.SpeechSynthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesizer = client }
}

// WithSpeaking sets whether answers are spoken initially, see
// [Orchestrator.SetSpeaking].
func WithSpeaking(isSpeaking bool) OrchestratorOption {
	return func(o *Orchestrator) { o.speaking.Store(isSpeaking) }
}

type OrchestrateOptions struct {
	onEvent                func(event events.Event)
	onStateChanged         func(from, to SessionState)
	onInterimTranscription func(transcript string)
	onTranscription        func(transcript string)
	onResponse             func(response string)
	onResponseEnd          func(answer string)
	onSentenceQueued       func(sentence string)
	onSentenceSpoken       func(sentence string)
	onError                func(message string, err error)
	onNotice               func(message string)
	onCancellation         func()
}

type OrchestrateOption func(*OrchestrateOptions)

// WithEventCallback registers a callback receiving every typed event before
// the more specific callbacks run.
func WithEventCallback(callback func(event events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onEvent = callback
	}
}

func WithStateChangedCallback(callback func(from, to SessionState)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onStateChanged = callback
	}
}

// WithInterimTranscriptionCallback registers a callback for interim
// transcriptions produced while listening.
func WithInterimTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInterimTranscription = callback
	}
}

// WithTranscriptionCallback registers a callback for the question of every
// turn, typed or transcribed.
func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscription = callback
	}
}

func WithResponseCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponse = callback
	}
}

func WithResponseEndCallback(callback func(answer string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponseEnd = callback
	}
}

func WithSentenceQueuedCallback(callback func(sentence string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onSentenceQueued = callback
	}
}

func WithSentenceSpokenCallback(callback func(sentence string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onSentenceSpoken = callback
	}
}

// WithErrorCallback registers a callback for fatal session errors. message
// is meant to be shown to the user as is.
func WithErrorCallback(callback func(message string, err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onError = callback
	}
}

func WithNoticeCallback(callback func(message string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onNotice = callback
	}
}

func WithCancellationCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onCancellation = callback
	}
}
