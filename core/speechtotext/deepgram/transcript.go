package deepgram

import (
	"encoding/json"
	"fmt"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
)

// transcriptAssembler folds listen responses into one utterance transcript.
type transcriptAssembler struct {
	segments      []string
	speechStarted bool
}

type assemblerUpdate struct {
	interim       string
	utteranceDone bool
}

func (a *transcriptAssembler) process(msg []byte) (assemblerUpdate, error) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		return assemblerUpdate{}, fmt.Errorf("failed to unmarshal deepgram message: %w", err)
	}

	update := assemblerUpdate{}
	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return update, fmt.Errorf("failed to unmarshal deepgram results: %w", err)
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}
		if len(transcript) > 0 {
			a.speechStarted = true
			if msgResp.IsFinal {
				a.segments = append(a.segments, transcript)
			} else {
				update.interim = strings.TrimSpace(a.transcript() + " " + transcript)
			}
		}
		if msgResp.IsFinal && msgResp.SpeechFinal && len(a.segments) > 0 {
			update.utteranceDone = true
		}

	case api.TypeUtteranceEndResponse:
		if len(a.segments) > 0 {
			update.utteranceDone = true
		}

	case api.TypeSpeechStartedResponse:
		a.speechStarted = true
	}

	return update, nil
}

func (a *transcriptAssembler) transcript() string {
	return strings.Join(a.segments, " ")
}
