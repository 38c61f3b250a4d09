package orchestration

import "github.com/koscakluka/ema-voice/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		logger.Debug("emitting event",
			"event.family", event.Kind().Family(),
			"event.kind", string(event.Kind()),
			"event.sequence", event.Sequence())

		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.SessionStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(parseSessionState(typedEvent.From), parseSessionState(typedEvent.To))
			}
		case events.SessionError:
			if opts.onError != nil {
				opts.onError(typedEvent.Message, typedEvent.Err)
			}
		case events.SessionNotice:
			if opts.onNotice != nil {
				opts.onNotice(typedEvent.Message)
			}
		case events.UserTranscriptInterimUpdated:
			if opts.onInterimTranscription != nil {
				opts.onInterimTranscription(typedEvent.Transcript)
			}
		case events.UserTranscriptFinal:
			if opts.onInterimTranscription != nil {
				opts.onInterimTranscription("")
			}
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.AssistantResponseSegment:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Segment)
			}
		case events.AssistantResponseFinal:
			if opts.onResponseEnd != nil {
				opts.onResponseEnd(typedEvent.Answer)
			}
		case events.AssistantSpeechSentenceQueued:
			if opts.onSentenceQueued != nil {
				opts.onSentenceQueued(typedEvent.Sentence)
			}
		case events.AssistantPlaybackSentencePlayed:
			if opts.onSentenceSpoken != nil {
				opts.onSentenceSpoken(typedEvent.Sentence)
			}
		case events.TurnCancelled:
			if opts.onCancellation != nil {
				opts.onCancellation()
			}
		}
	}
}

func parseSessionState(state string) SessionState {
	for _, candidate := range []SessionState{StateIdle, StateListening, StateProcessing, StateError} {
		if candidate.String() == state {
			return candidate
		}
	}
	return StateIdle
}
