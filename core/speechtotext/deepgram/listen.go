package deepgram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

type sessionResult int

const (
	sessionResultTranscript sessionResult = iota
	sessionResultEnded
	sessionResultError
)

type listenSession struct {
	conn    *websocket.Conn
	connMu  sync.Mutex
	input   speechtotext.AudioInput
	options speechtotext.CaptureOptions
	cancel  context.CancelFunc
	onDone  func(*listenSession)

	mu        sync.Mutex
	assembler transcriptAssembler

	finishOnce sync.Once
	finished   chan struct{}
	initOnce   sync.Once
}

func (s *listenSession) done() chan struct{} {
	s.initOnce.Do(func() { s.finished = make(chan struct{}) })
	return s.finished
}

func (s *listenSession) sendAudio(audio []byte) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	select {
	case <-s.done():
		return
	default:
	}

	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		logger.Debug("failed to write audio to deepgram", "error", err)
	}
}

func (s *listenSession) readMessages() {
	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done():
				return
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.finishWithTranscript()
				return
			}
			s.finish(sessionResultError, "", speechtotext.NewCaptureError(speechtotext.CodeNetwork, fmt.Errorf("failed to read deepgram message: %w", err)))
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		s.mu.Lock()
		update, err := s.assembler.process(msg)
		transcript := s.assembler.transcript()
		s.mu.Unlock()
		if err != nil {
			logger.Debug("skipping deepgram message", "error", err)
			continue
		}

		if update.interim != "" {
			s.options.InterimTranscriptCallback(update.interim)
		}
		if update.utteranceDone {
			s.finish(sessionResultTranscript, transcript, nil)
			return
		}
	}
}

// awaitSpeech ends the session without a result when nothing was said in
// time.
func (s *listenSession) awaitSpeech(ctx context.Context, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-s.done():
		return
	case <-timer.C:
	}

	s.mu.Lock()
	started := s.assembler.speechStarted
	s.mu.Unlock()
	if !started {
		s.finish(sessionResultEnded, "", nil)
	}
}

func (s *listenSession) finishWithTranscript() {
	s.mu.Lock()
	transcript := s.assembler.transcript()
	s.mu.Unlock()

	if transcript == "" {
		s.finish(sessionResultEnded, "", nil)
		return
	}
	s.finish(sessionResultTranscript, transcript, nil)
}

// finish tears the session down and reports its single outcome.
func (s *listenSession) finish(result sessionResult, transcript string, err error) {
	s.finishOnce.Do(func() {
		close(s.done())
		if stopErr := s.input.StopCapture(); stopErr != nil {
			logger.Warn("failed to stop audio capture", "error", stopErr)
		}
		s.cancel()

		s.connMu.Lock()
		if writeErr := s.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: "CloseStream"}); writeErr != nil {
			logger.Debug("failed to send close stream to deepgram", "error", writeErr)
		}
		_ = s.conn.Close()
		s.connMu.Unlock()

		if s.onDone != nil {
			s.onDone(s)
		}

		switch result {
		case sessionResultTranscript:
			s.options.TranscriptCallback(transcript)
		case sessionResultError:
			s.options.ErrorCallback(err)
		default:
			s.options.EndedCallback()
		}
	})
}
