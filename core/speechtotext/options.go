package speechtotext

import (
	"context"

	"github.com/koscakluka/ema-voice/core/audio"
)

// CaptureOptions configures a single listening session. Exactly one of
// TranscriptCallback, EndedCallback or ErrorCallback is called per session.
type CaptureOptions struct {
	// TranscriptCallback receives the final transcript of the utterance.
	TranscriptCallback func(transcript string)
	// InterimTranscriptCallback receives mutable snapshots while the user is
	// still speaking. It may be called any number of times before the session
	// ends.
	InterimTranscriptCallback func(transcript string)
	// EndedCallback is called when listening ended without a result, either
	// because nothing was said or because listening was stopped.
	EndedCallback func()
	// ErrorCallback receives a *CaptureError when capture fails.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type CaptureOption func(*CaptureOptions)

// NewCaptureOptions applies opts over no-op callbacks and the default
// encoding.
func NewCaptureOptions(opts ...CaptureOption) CaptureOptions {
	options := CaptureOptions{
		TranscriptCallback:        func(string) {},
		InterimTranscriptCallback: func(string) {},
		EndedCallback:             func() {},
		ErrorCallback:             func(error) {},
		EncodingInfo:              audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithTranscriptCallback(callback func(transcript string)) CaptureOption {
	return func(o *CaptureOptions) {
		if callback != nil {
			o.TranscriptCallback = callback
		}
	}
}

func WithInterimTranscriptCallback(callback func(transcript string)) CaptureOption {
	return func(o *CaptureOptions) {
		if callback != nil {
			o.InterimTranscriptCallback = callback
		}
	}
}

func WithEndedCallback(callback func()) CaptureOption {
	return func(o *CaptureOptions) {
		if callback != nil {
			o.EndedCallback = callback
		}
	}
}

func WithErrorCallback(callback func(error)) CaptureOption {
	return func(o *CaptureOptions) {
		if callback != nil {
			o.ErrorCallback = callback
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) CaptureOption {
	return func(o *CaptureOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// AudioInput is a microphone capture device.
type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}
