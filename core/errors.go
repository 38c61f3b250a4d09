package orchestration

import (
	"errors"
	"fmt"

	"github.com/koscakluka/ema-voice/core/answers"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

var (
	ErrNoAnswerStream  = errors.New("no answer stream configured")
	ErrCaptureMissing  = errors.New("no speech capture configured")
	ErrCaptureNotReady = errors.New("speech capture is not available")
)

// ErrorKind classifies failures of a session.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindCaptureUnsupported means voice input cannot work at all.
	ErrorKindCaptureUnsupported
	// ErrorKindCapture is any other capture failure, the user has to retry.
	ErrorKindCapture
	// ErrorKindStreamTransport means the answer service could not be reached.
	ErrorKindStreamTransport
	// ErrorKindStreamClient is a 4xx answer service response.
	ErrorKindStreamClient
	// ErrorKindStreamServer is a 5xx answer service response.
	ErrorKindStreamServer
	// ErrorKindStream is any other answer stream failure.
	ErrorKindStream
	// ErrorKindChunkDecode is a single undecodable stream line. Never fatal.
	ErrorKindChunkDecode
	// ErrorKindSynthesis is a failed sentence. Ends playback of the turn but
	// never the session.
	ErrorKindSynthesis
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindCaptureUnsupported:
		return "capture_unsupported"
	case ErrorKindCapture:
		return "capture_error"
	case ErrorKindStreamTransport:
		return "stream_transport_error"
	case ErrorKindStreamClient:
		return "stream_client_error"
	case ErrorKindStreamServer:
		return "stream_server_error"
	case ErrorKindStream:
		return "stream_error"
	case ErrorKindChunkDecode:
		return "chunk_decode_error"
	case ErrorKindSynthesis:
		return "synthesis_error"
	}
	return "unknown_error"
}

// Fatal reports whether the kind moves the session into [StateError].
func (k ErrorKind) Fatal() bool {
	switch k {
	case ErrorKindChunkDecode, ErrorKindSynthesis:
		return false
	}
	return true
}

// SessionError is a classified session failure.
type SessionError struct {
	Kind ErrorKind
	Err  error
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// UserMessage returns the message shown to the user for the failure.
func (e *SessionError) UserMessage() string {
	switch e.Kind {
	case ErrorKindCaptureUnsupported:
		return "Sorry, voice input is not supported here."
	case ErrorKindCapture:
		code := "unknown"
		var captureErr *speechtotext.CaptureError
		if errors.As(e.Err, &captureErr) {
			code = string(captureErr.Code)
		}
		switch speechtotext.ErrorCode(code) {
		case speechtotext.CodeNotAllowed:
			return "Microphone access is needed. Please allow it."
		case speechtotext.CodeNetwork:
			return "A network error occurred during speech recognition. Please check your connection."
		}
		return "Speech recognition error: " + code
	case ErrorKindStreamTransport:
		return "Could not connect to the server. Please check your internet connection."
	case ErrorKindStreamClient:
		return "There was a problem with the request. Please try rephrasing."
	case ErrorKindStreamServer:
		return "The server is having trouble right now. Please try again in a moment."
	}
	return "An unknown error occurred while getting the response."
}

func newCaptureSessionError(err error) *SessionError {
	var captureErr *speechtotext.CaptureError
	if errors.As(err, &captureErr) && captureErr.Code == speechtotext.CodeUnsupported {
		return &SessionError{Kind: ErrorKindCaptureUnsupported, Err: err}
	}
	if errors.Is(err, ErrCaptureMissing) || errors.Is(err, ErrCaptureNotReady) {
		return &SessionError{Kind: ErrorKindCaptureUnsupported, Err: err}
	}
	return &SessionError{Kind: ErrorKindCapture, Err: err}
}

func newStreamSessionError(err error) *SessionError {
	var statusErr *answers.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.IsClientError():
		return &SessionError{Kind: ErrorKindStreamClient, Err: err}
	case errors.As(err, &statusErr) && statusErr.IsServerError():
		return &SessionError{Kind: ErrorKindStreamServer, Err: err}
	case errors.Is(err, answers.ErrTransport):
		return &SessionError{Kind: ErrorKindStreamTransport, Err: err}
	}
	return &SessionError{Kind: ErrorKindStream, Err: err}
}

// isBenignCaptureEnding reports capture failures that only mean nothing was
// said.
func isBenignCaptureEnding(err error) bool {
	var captureErr *speechtotext.CaptureError
	return errors.As(err, &captureErr) && captureErr.Code.IsBenign()
}
