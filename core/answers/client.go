package answers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	chunkPrefix   = "data:"
	maxLineLength = 1024 * 1024
)

// Client streams answers to questions from the answer service.
type Client struct {
	endpoint   string
	httpClient *http.Client
	headers    http.Header
}

type ClientOption func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithResponseTimeout bounds how long the service may take to start
// responding. It does not limit how long the answer itself may stream.
func WithResponseTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = timeout
		c.httpClient = newHTTPClient(transport)
	}
}

func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.headers.Set(key, value) }
}

func NewClient(endpoint string, opts ...ClientOption) *Client {
	client := &Client{
		endpoint:   endpoint,
		httpClient: newHTTPClient(http.DefaultTransport),
		headers:    http.Header{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func newHTTPClient(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
			return operationName + " " + request.URL.Path
		}),
	)}
}

type requestBody struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

// StreamAnswer asks question and blocks until the answer stream ends.
//
// Chunks are delivered through the data callback as they arrive. The call
// then ends with exactly one of the completion or error callbacks, or with
// neither when ctx is cancelled first.
func (c *Client) StreamAnswer(ctx context.Context, question string, opts ...StreamOption) {
	options := newStreamOptions(opts...)

	ctx, span := tracer.Start(ctx, "stream answer",
		trace.WithAttributes(attribute.Int("request.question_length", len(question))))
	defer span.End()

	fail := func(err error) {
		if ctx.Err() != nil {
			span.AddEvent("cancelled")
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		options.ErrorCallback(err)
	}

	requestBodyBytes, err := json.Marshal(requestBody{Type: "TEXT", Question: question})
	if err != nil {
		fail(fmt.Errorf("error marshalling request: %w", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		fail(fmt.Errorf("%w: error creating request: %w", ErrTransport, err))
		return
	}
	req.Header = c.headers.Clone()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	span.SetAttributes(attribute.String("request.url", req.URL.String()))

	requestStarted := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		fail(fmt.Errorf("%w: error sending request: %w", ErrTransport, err))
		return
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fail(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
		return
	}

	summary := Summary{}
	firstChunk := true
	lines := newLineReader(resp.Body, maxLineLength)
	for {
		line, tooLong, err := lines.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(fmt.Errorf("%w: error reading streamed response: %w", ErrTransport, err))
			return
		}
		if tooLong {
			logger.Debug("skipping oversized answer line", "max_length", maxLineLength)
			span.AddEvent("skipped oversized line")
			skippedLines.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "too_long")))
			continue
		}
		if !bytes.HasPrefix(line, []byte(chunkPrefix)) {
			continue
		}
		payload := bytes.TrimSpace(bytes.TrimPrefix(line, []byte(chunkPrefix)))
		if len(payload) == 0 {
			continue
		}

		var chunk Chunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			logger.Debug("skipping undecodable answer chunk", "error", err, "payload", string(payload))
			span.AddEvent("skipped undecodable chunk")
			skippedLines.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "decode")))
			continue
		}

		if firstChunk {
			firstChunk = false
			span.SetAttributes(attribute.Float64("response.request_to_first_chunk_time", time.Since(requestStarted).Seconds()))
			span.AddEvent("received first chunk")
		}

		if chunk.IsComplete {
			summary.record(chunk)
			continue
		}
		if ctx.Err() != nil {
			span.AddEvent("cancelled")
			return
		}
		options.DataCallback(chunk)
	}

	if ctx.Err() != nil {
		span.AddEvent("cancelled")
		return
	}

	span.SetAttributes(
		attribute.Bool("response.completion_marker", summary.MarkerSeen),
		attribute.String("response.answer_id", summary.AnswerID),
	)
	options.CompletionCallback(summary)
}
