package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

const defaultEndpoint = "wss://api.deepgram.com/v1/speak"

// SpeakClient synthesizes sentences with the Deepgram speak websocket and
// plays them on an [texttospeech.AudioOutput].
type SpeakClient struct {
	output  texttospeech.AudioOutput
	options texttospeech.SpeakOptions

	apiKey   string
	endpoint string
	voice    Voice
	dialer   *websocket.Dialer

	speakMu sync.Mutex

	connMu sync.Mutex
	conn   *websocket.Conn
}

type ClientOption func(*SpeakClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *SpeakClient) { c.apiKey = apiKey }
}

func WithEndpoint(endpoint string) ClientOption {
	return func(c *SpeakClient) { c.endpoint = endpoint }
}

func WithVoice(voice Voice) ClientOption {
	return func(c *SpeakClient) {
		if voice != "" {
			c.voice = voice
		}
	}
}

func WithSpeakOptions(opts ...texttospeech.SpeakOption) ClientOption {
	return func(c *SpeakClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewSpeakClient(output texttospeech.AudioOutput, opts ...ClientOption) (*SpeakClient, error) {
	if output == nil {
		return nil, texttospeech.ErrNoAudioOutput
	}

	client := &SpeakClient{
		output:   output,
		options:  texttospeech.NewSpeakOptions(texttospeech.WithEncodingInfo(output.EncodingInfo())),
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		endpoint: defaultEndpoint,
		voice:    defaultVoice,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}
	if err := validateEncoding(client.options.EncodingInfo); err != nil {
		return nil, err
	}

	return client, nil
}

// Close drops the open connection, if any. The client can still be used
// afterwards and reconnects on the next sentence.
func (c *SpeakClient) Close() {
	c.dropConnection()
}

func (c *SpeakClient) connection(ctx context.Context) (*websocket.Conn, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	speakURL, err := c.speakURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, speakURL, http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	c.conn = conn
	return conn, nil
}

func (c *SpeakClient) dropConnection() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return
	}

	if err := c.conn.WriteJSON(closeMsg); err != nil {
		logger.Debug("failed to send close message to deepgram", "error", err)
	}
	_ = c.conn.Close()
	c.conn = nil
}

func (c *SpeakClient) speakURL() (string, error) {
	speakURL, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid speak endpoint: %w", err)
	}

	urlValues := speakURL.Query()
	urlValues.Set("encoding", c.options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(c.options.EncodingInfo.SampleRate))
	urlValues.Set("model", string(c.voice))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	return speakURL.String(), nil
}

func validateEncoding(encoding audio.EncodingInfo) error {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 8000, 16000, 24000, 32000, 48000:
			return nil
		}
	case audio.EncodingMulaw, audio.EncodingALaw:
		switch encoding.SampleRate {
		case 8000, 16000:
			return nil
		}
	default:
		return fmt.Errorf("unsupported encoding %q", encoding.Format)
	}
	return fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format)
}
