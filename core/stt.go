package orchestration

import (
	"strings"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// beginCapture starts a new capture session and enters Listening. Results
// of earlier sessions are dropped from here on.
func (o *Orchestrator) beginCapture() {
	if o.speechCapture == nil {
		o.fail(newCaptureSessionError(ErrCaptureMissing))
		return
	}
	if !o.speechCapture.Available() {
		o.fail(newCaptureSessionError(ErrCaptureNotReady))
		return
	}

	o.captureSession++
	session := o.captureSession
	o.transition(StateListening)

	capture := o.speechCapture
	ctx := o.baseContext
	o.captureCalls.run(func() {
		err := capture.StartListening(ctx,
			speechtotext.WithTranscriptCallback(func(transcript string) {
				o.postCapture(session, func() { o.onTranscript(transcript) })
			}),
			speechtotext.WithInterimTranscriptCallback(func(transcript string) {
				o.postCapture(session, func() { o.emit(events.NewUserTranscriptInterimUpdated(transcript)) })
			}),
			speechtotext.WithEndedCallback(func() {
				o.postCapture(session, o.onCaptureEnded)
			}),
			speechtotext.WithErrorCallback(func(err error) {
				o.postCapture(session, func() { o.onCaptureError(err) })
			}),
		)
		if err != nil {
			o.postCapture(session, func() { o.onCaptureError(err) })
		}
	})
}

// releaseCapture stops the current capture session. Anything it still
// reports is dropped. Stops never overtake an earlier start.
func (o *Orchestrator) releaseCapture() {
	o.captureSession++
	capture := o.speechCapture
	if capture == nil {
		return
	}

	o.captureCalls.run(func() {
		if err := capture.StopListening(); err != nil {
			logger.Warn("failed to stop listening", "error", err)
		}
	})
}

func (o *Orchestrator) postCapture(session uint64, handle func()) {
	o.runtime.post(func() {
		if session != o.captureSession || o.currentState() != StateListening {
			logger.Debug("dropping stale capture result", "capture_session", session)
			staleEvents.Add(o.baseContext, 1, metric.WithAttributes(attribute.String("source", "capture")))
			return
		}
		handle()
	})
}

func (o *Orchestrator) onTranscript(transcript string) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		logger.Debug("transcript is empty, returning to idle")
		o.onCaptureEnded()
		return
	}

	// the capture session delivered its one result
	o.captureSession++
	o.startTurn(transcript)
}

func (o *Orchestrator) onCaptureEnded() {
	o.captureSession++
	o.emit(events.NewUserInputEnded())
	o.transition(StateIdle)
}

func (o *Orchestrator) onCaptureError(err error) {
	if isBenignCaptureEnding(err) {
		logger.Debug("capture ended without result", "error", err)
		o.onCaptureEnded()
		return
	}
	o.fail(newCaptureSessionError(err))
}
