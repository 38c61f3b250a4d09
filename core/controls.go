package orchestration

import (
	"github.com/koscakluka/ema-voice/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// The methods in this file run on the session event loop only.

func (o *Orchestrator) currentState() SessionState {
	return SessionState(o.state.Load())
}

func (o *Orchestrator) transition(to SessionState) {
	from := o.currentState()
	if from == to {
		return
	}

	o.state.Store(int32(to))
	o.conversation.setState(to)
	if o.turn != nil {
		o.turn.span.AddEvent("state changed", trace.WithAttributes(
			attribute.String("session.state.from", from.String()),
			attribute.String("session.state.to", to.String()),
		))
	}
	logger.Debug("session state changed", "from", from.String(), "to", to.String())
	o.emit(events.NewSessionStateChanged(from.String(), to.String()))
}

func (o *Orchestrator) primaryAction() {
	switch o.currentState() {
	case StateIdle:
		o.startListening()
	case StateListening:
		o.stopListening()
	case StateProcessing:
		o.cancel()
	case StateError:
		o.retry()
	}
}

func (o *Orchestrator) startListening() {
	if state := o.currentState(); state != StateIdle {
		logger.Debug("ignoring start listening", "state", state.String())
		return
	}

	if o.captureUnsupported {
		o.emit(events.NewSessionNotice(typedOnlyNotice))
		return
	}

	o.conversation.clearCurrent()
	o.beginCapture()
}

func (o *Orchestrator) stopListening() {
	if o.currentState() != StateListening {
		return
	}

	o.releaseCapture()
	o.emit(events.NewUserInputEnded())
	o.transition(StateIdle)
}

func (o *Orchestrator) submitQuestion(question string) {
	switch state := o.currentState(); state {
	case StateListening:
		o.releaseCapture()
	case StateIdle:
	default:
		logger.Debug("ignoring submitted question", "state", state.String())
		return
	}

	o.conversation.clearCurrent()
	o.startTurn(question)
}

func (o *Orchestrator) cancel() {
	switch o.currentState() {
	case StateListening:
		o.stopListening()
	case StateProcessing:
		if o.turn != nil {
			turnID := o.turn.ID
			o.finishTurn(TurnOutcomeCancelled, nil)
			o.emit(events.NewTurnCancelled(turnID))
		}
		o.transition(StateIdle)
	}
}

func (o *Orchestrator) retry() {
	if o.currentState() != StateError {
		return
	}

	o.lastError = nil
	o.conversation.setError("")
	o.transition(StateIdle)
}

// fail moves the session into the error state, cancelling whatever is
// still in flight. Only the first failure is reported. Unsupported capture
// has no retry path: after the retry only typed questions are accepted.
func (o *Orchestrator) fail(sessionErr *SessionError) {
	if !sessionErr.Kind.Fatal() {
		logger.Warn("ignoring non-fatal session error", "kind", sessionErr.Kind.String(), "error", sessionErr.Err)
		return
	}
	if o.currentState() == StateError {
		logger.Debug("session already failed", "kind", sessionErr.Kind.String(), "error", sessionErr.Err)
		return
	}

	if o.turn != nil {
		turnID := o.turn.ID
		o.finishTurn(TurnOutcomeFailed, sessionErr)
		o.emit(events.NewTurnFailed(turnID, sessionErr))
	}
	if o.currentState() == StateListening {
		o.releaseCapture()
	}

	if sessionErr.Kind == ErrorKindCaptureUnsupported {
		o.captureUnsupported = true
	}

	o.lastError = sessionErr
	message := sessionErr.UserMessage()
	o.conversation.setError(message)
	logger.Error("session failed", "kind", sessionErr.Kind.String(), "error", sessionErr.Err)
	o.transition(StateError)
	o.emit(events.NewSessionError(sessionErr.Kind.String(), message, sessionErr))
}

// finishTurn stops the active turn and moves it into history.
func (o *Orchestrator) finishTurn(outcome TurnOutcome, err error) {
	turn := o.turn
	if turn == nil {
		return
	}

	o.turn = nil
	o.conversation.finishTurn(turn.finalise(outcome, err))
}

func (o *Orchestrator) shutdown() {
	if o.turn != nil {
		turnID := o.turn.ID
		o.finishTurn(TurnOutcomeCancelled, nil)
		o.emit(events.NewTurnCancelled(turnID))
	}
	if o.currentState() == StateListening {
		o.releaseCapture()
	}
	o.transition(StateIdle)
}
