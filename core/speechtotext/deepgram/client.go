package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

const (
	defaultEndpoint        = "wss://api.deepgram.com/v1/listen"
	defaultModel           = "nova-3"
	defaultLanguage        = "en-US"
	defaultNoSpeechTimeout = 8 * time.Second
)

// ListenClient captures a single utterance per listening session and
// transcribes it with the Deepgram live listen API.
type ListenClient struct {
	input speechtotext.AudioInput

	apiKey          string
	endpoint        string
	model           string
	language        string
	noSpeechTimeout time.Duration
	dialer          *websocket.Dialer

	mu      sync.Mutex
	session *listenSession
}

type ClientOption func(*ListenClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *ListenClient) { c.apiKey = apiKey }
}

func WithEndpoint(endpoint string) ClientOption {
	return func(c *ListenClient) { c.endpoint = endpoint }
}

func WithModel(model string) ClientOption {
	return func(c *ListenClient) {
		if model != "" {
			c.model = model
		}
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *ListenClient) {
		if language != "" {
			c.language = language
		}
	}
}

// WithNoSpeechTimeout sets how long a session waits for speech before it
// ends without a result.
func WithNoSpeechTimeout(timeout time.Duration) ClientOption {
	return func(c *ListenClient) {
		if timeout > 0 {
			c.noSpeechTimeout = timeout
		}
	}
}

func NewListenClient(input speechtotext.AudioInput, opts ...ClientOption) *ListenClient {
	client := &ListenClient{
		input:           input,
		apiKey:          os.Getenv("DEEPGRAM_API_KEY"),
		endpoint:        defaultEndpoint,
		model:           defaultModel,
		language:        defaultLanguage,
		noSpeechTimeout: defaultNoSpeechTimeout,
		dialer:          websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Available reports whether listening can be started at all.
func (c *ListenClient) Available() bool {
	return c.apiKey != "" && c.input != nil
}

func (c *ListenClient) StartListening(ctx context.Context, opts ...speechtotext.CaptureOption) error {
	if !c.Available() {
		return speechtotext.NewCaptureError(speechtotext.CodeUnsupported, errors.New("deepgram api key or audio input missing"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "start listening")
	defer span.End()

	options := speechtotext.NewCaptureOptions(append([]speechtotext.CaptureOption{
		speechtotext.WithEncodingInfo(c.input.EncodingInfo()),
	}, opts...)...)

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return speechtotext.NewCaptureError(speechtotext.CodeUnsupported, err)
	}

	listenURL, err := c.listenURL(encoding)
	if err != nil {
		return speechtotext.NewCaptureError(speechtotext.CodeUnsupported, err)
	}

	conn, resp, err := c.dialer.DialContext(ctx, listenURL, http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return speechtotext.NewCaptureError(speechtotext.CodeNotAllowed, fmt.Errorf("deepgram rejected credentials: %s", resp.Status))
		}
		return speechtotext.NewCaptureError(speechtotext.CodeNetwork, fmt.Errorf("failed to open socket connection to deepgram: %w", err))
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session := &listenSession{
		conn:    conn,
		input:   c.input,
		options: options,
		cancel:  cancel,
		onDone: func(s *listenSession) {
			c.mu.Lock()
			if c.session == s {
				c.session = nil
			}
			c.mu.Unlock()
		},
	}

	if err := c.input.StartCapture(sessionCtx, session.sendAudio); err != nil {
		cancel()
		_ = conn.Close()
		return speechtotext.NewCaptureError(speechtotext.CodeAudioCapture, err)
	}

	c.session = session
	go session.readMessages()
	go session.awaitSpeech(sessionCtx, c.noSpeechTimeout)
	return nil
}

// StopListening ends the current session without a result.
func (c *ListenClient) StopListening() error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	session.finish(sessionResultEnded, "", nil)
	return nil
}

func (c *ListenClient) listenURL(encoding *encodingInfo) (string, error) {
	listenURL, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid listen endpoint: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", c.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	listenURL.RawQuery = queryParams.Encode()

	return listenURL.String(), nil
}
