package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

func speakMsg(text string) websocketMessage {
	return websocketMessage{Type: "Speak", Text: text}
}

// Speak synthesizes sentence and blocks until it has been played.
func (c *SpeakClient) Speak(ctx context.Context, sentence string) error {
	c.speakMu.Lock()
	defer c.speakMu.Unlock()

	ctx, span := tracer.Start(ctx, "speak sentence",
		trace.WithAttributes(attribute.Int("sentence.length", len(sentence))))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := c.connection(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return err
	}

	stopWatching := context.AfterFunc(ctx, c.abandon)
	err = c.synthesize(conn, sentence)
	if err != nil {
		stopWatching()
		c.dropConnection()
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.output.ClearBuffer()
			return ctxErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return fmt.Errorf("failed to synthesize sentence: %w", err)
	}
	stopWatching()

	if err := c.awaitPlayback(ctx, sentence); err != nil {
		if ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "playback failed")
		}
		return err
	}
	return nil
}

// synthesize sends sentence and forwards audio to the output until the
// server confirms the flush.
func (c *SpeakClient) synthesize(conn *websocket.Conn, sentence string) error {
	c.connMu.Lock()
	err := conn.WriteJSON(speakMsg(sentence))
	if err == nil {
		err = conn.WriteJSON(flushMsg)
	}
	c.connMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read from websocket: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			c.options.AudioCallback(msg)
			if err := c.output.SendAudio(msg); err != nil {
				return fmt.Errorf("failed to send audio to output: %w", err)
			}

		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
				WarnMsg     string `json:"warn_msg"`
				ErrMsg      string `json:"err_msg"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				return nil
			case "Warning":
				logger.Warn("deepgram speak warning", "message", parsedMsg.WarnMsg, "description", parsedMsg.Description)
			case "Error":
				return fmt.Errorf("deepgram speak error: %s", parsedMsg.ErrMsg)
			case "Cleared", "Metadata":
			default:
				logger.Debug("unknown deepgram message", "type", parsedMsg.Type)
			}
		}
	}
}

func (c *SpeakClient) awaitPlayback(ctx context.Context, sentence string) error {
	played := make(chan struct{})
	var playedOnce sync.Once
	if err := c.output.Mark(sentence, func(string) {
		playedOnce.Do(func() { close(played) })
	}); err != nil {
		return fmt.Errorf("failed to mark end of sentence: %w", err)
	}

	select {
	case <-played:
		return nil
	case <-ctx.Done():
		c.output.ClearBuffer()
		return ctx.Err()
	}
}

// abandon discards whatever the server still has queued and drops the
// connection so a blocked read returns.
func (c *SpeakClient) abandon() {
	c.connMu.Lock()
	if c.conn != nil {
		if err := c.conn.WriteJSON(clearMsg); err != nil {
			logger.Debug("failed to send clear message to deepgram", "error", err)
		}
	}
	c.connMu.Unlock()
	c.dropConnection()
}
