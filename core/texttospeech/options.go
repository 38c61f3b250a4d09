package texttospeech

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-voice/core/audio"
)

var ErrNoAudioOutput = errors.New("no audio output configured")

// SpeechSynthesizer turns one sentence into audible speech.
//
// Speak returns once the sentence has finished playing. It returns
// ctx.Err() when ctx is cancelled, after any audio for the sentence has been
// discarded. Speak is not reentrant: callers must wait for one call to
// return before starting the next.
type SpeechSynthesizer interface {
	Speak(ctx context.Context, sentence string) error
}

// AudioOutput plays raw audio produced by a synthesizer.
type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	// Mark calls callback once all audio sent before the mark has been
	// played, or once the buffer holding it was cleared.
	Mark(mark string, callback func(string)) error
	ClearBuffer()
}

type SpeakOptions struct {
	// AudioCallback is called with every audio chunk before it is sent to
	// the output
	AudioCallback func(audio []byte)
	EncodingInfo  audio.EncodingInfo
}

type SpeakOption func(*SpeakOptions)

func NewSpeakOptions(opts ...SpeakOption) SpeakOptions {
	options := SpeakOptions{
		AudioCallback: func([]byte) {},
		EncodingInfo:  audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithAudioCallback(callback func([]byte)) SpeakOption {
	return func(o *SpeakOptions) {
		if callback != nil {
			o.AudioCallback = callback
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeakOption {
	return func(o *SpeakOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}
