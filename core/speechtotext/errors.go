package speechtotext

import "fmt"

type ErrorCode string

const (
	CodeUnsupported  ErrorCode = "unsupported"
	CodeNotAllowed   ErrorCode = "not-allowed"
	CodeNetwork      ErrorCode = "network"
	CodeAudioCapture ErrorCode = "audio-capture"
	CodeNoSpeech     ErrorCode = "no-speech"
	CodeAborted      ErrorCode = "aborted"
)

// IsBenign reports whether the code describes a session that simply ended
// without a result rather than a failure.
func (c ErrorCode) IsBenign() bool {
	return c == CodeNoSpeech || c == CodeAborted
}

// CaptureError is reported by capture clients through
// [CaptureOptions.ErrorCallback] or returned when listening cannot start.
type CaptureError struct {
	Code ErrorCode
	Err  error
}

func NewCaptureError(code ErrorCode, err error) *CaptureError {
	return &CaptureError{Code: code, Err: err}
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("speech capture error: %s", e.Code)
	}
	return fmt.Sprintf("speech capture error: %s: %v", e.Code, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
