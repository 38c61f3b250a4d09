package orchestration

import (
	"context"

	"github.com/koscakluka/ema-voice/core/answers"
	"github.com/koscakluka/ema-voice/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// startTurn enters Processing with a fresh turn and starts streaming its
// answer.
func (o *Orchestrator) startTurn(question string) {
	if o.answerStream == nil {
		o.fail(&SessionError{Kind: ErrorKindStream, Err: ErrNoAnswerStream})
		return
	}

	turn := newActiveTurn(o.baseContext, question, o.speaking.Load() && o.synthesizer != nil)
	turn.gate = newCompletionGate(func() { o.completeTurn(turn) })
	if turn.speaking {
		turn.player = newSpeechPlayer(turn.ctx, o.synthesizer,
			func(fn func()) { o.postTurn(turn.ID, func(*activeTurn) { fn() }) },
			speechPlayerCallbacks{
				onBusy: turn.gate.RearmPlayback,
				onPlayed: func(sentence string) {
					turn.spokenSentences = append(turn.spokenSentences, sentence)
					o.emit(events.NewAssistantPlaybackSentencePlayed(sentence))
				},
				onDrained: func(degraded bool) {
					turn.span.AddEvent("playback drained", trace.WithAttributes(attribute.Bool("playback.degraded", degraded)))
					o.emit(events.NewAssistantPlaybackEnded(degraded))
					turn.gate.MarkPlaybackDone()
				},
			})
	}

	o.turn = turn
	o.conversation.beginTurn(turn.ID, question)
	o.transition(StateProcessing)
	o.emit(events.NewUserTranscriptFinal(question))
	o.emit(events.NewTurnStarted(turn.ID, question))

	o.streamAnswer(turn)
}

func (o *Orchestrator) streamAnswer(turn *activeTurn) {
	client := o.answerStream
	turnID := turn.ID
	question := turn.Question

	stream := panicSafeNamedWorker("answer stream", func(ctx context.Context) error {
		client.StreamAnswer(ctx, question,
			answers.WithDataCallback(func(chunk answers.Chunk) {
				o.postTurn(turnID, func(turn *activeTurn) { o.onChunk(turn, chunk) })
			}),
			answers.WithErrorCallback(func(err error) {
				o.postTurn(turnID, func(turn *activeTurn) { o.onStreamError(turn, err) })
			}),
			answers.WithCompletionCallback(func(summary answers.Summary) {
				o.postTurn(turnID, func(turn *activeTurn) { o.onStreamComplete(turn, summary) })
			}),
		)
		return nil
	})

	go func() {
		if err := stream(turn.ctx); err != nil {
			o.postTurn(turnID, func(turn *activeTurn) { o.onStreamError(turn, err) })
		}
	}()
}

// postTurn runs handle on the event loop if turnID is still the active turn.
func (o *Orchestrator) postTurn(turnID string, handle func(*activeTurn)) {
	o.runtime.post(func() {
		if o.turn == nil || o.turn.ID != turnID || o.currentState() != StateProcessing {
			logger.Debug("dropping stale turn result", "turn_id", turnID)
			staleEvents.Add(o.baseContext, 1, metric.WithAttributes(attribute.String("source", "turn")))
			return
		}
		handle(o.turn)
	})
}

func (o *Orchestrator) onChunk(turn *activeTurn, chunk answers.Chunk) {
	turn.recordChunkMetadata(chunk.AnswerID, chunk.RewrittenQuestion)
	if chunk.Answer == "" {
		return
	}

	turn.answer.WriteString(chunk.Answer)
	o.conversation.appendAnswer(chunk.Answer)
	o.emit(events.NewAssistantResponseSegment(chunk.Answer))

	if !turn.speaking {
		return
	}
	for _, sentence := range turn.sentences.Push(chunk.Answer) {
		o.speakSentence(turn, sentence)
	}
}

func (o *Orchestrator) speakSentence(turn *activeTurn, sentence string) {
	turn.queuedSentences = append(turn.queuedSentences, sentence)
	o.emit(events.NewAssistantSpeechSentenceQueued(sentence))
	turn.player.Enqueue(sentence)
}

func (o *Orchestrator) onStreamComplete(turn *activeTurn, summary answers.Summary) {
	if summary.MarkerSeen {
		turn.recordChunkMetadata(summary.AnswerID, summary.RewrittenQuestion)
	}
	if turn.speaking {
		if rest := turn.sentences.Flush(); rest != "" {
			o.speakSentence(turn, rest)
		}
	}

	turn.span.AddEvent("stream completed", trace.WithAttributes(
		attribute.Bool("response.completion_marker", summary.MarkerSeen),
	))
	o.emit(events.NewAssistantResponseFinal(turn.answer.String(), turn.answerID))

	turn.gate.MarkStreamDone()
	// nothing was ever queued, or everything already played
	if turn.player == nil || !turn.player.Busy() {
		turn.gate.MarkPlaybackDone()
	}
}

func (o *Orchestrator) onStreamError(_ *activeTurn, err error) {
	o.fail(newStreamSessionError(err))
}

// completeTurn runs when both the answer stream and playback are done and
// reactivates capture if it can.
func (o *Orchestrator) completeTurn(turn *activeTurn) {
	if o.turn != turn {
		return
	}

	o.finishTurn(TurnOutcomeCompleted, nil)
	o.emit(events.NewTurnCompleted(turn.ID))

	if !o.captureUnsupported && o.speechCapture != nil && o.speechCapture.Available() {
		o.beginCapture()
		return
	}
	o.transition(StateIdle)
}
