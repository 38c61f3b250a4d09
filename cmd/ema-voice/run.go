package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/answers"
	"github.com/koscakluka/ema-voice/core/audio/miniaudio"
	"github.com/koscakluka/ema-voice/core/audio/portaudio"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	sttdeepgram "github.com/koscakluka/ema-voice/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	ttsdeepgram "github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-voice/internal/config"
	"golang.org/x/sync/errgroup"
)

const portaudioBufferSize = 1024

type runCommand struct {
	config.Flags `group:"Session Options"`
}

// audioDevice is a microphone and speaker pair.
type audioDevice interface {
	speechtotext.AudioInput
	texttospeech.AudioOutput
	Close()
}

func (c *runCommand) Execute(_ []string) error {
	cfg, err := config.Load(c.Flags)
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	device, err := openAudio(cfg.Audio.Backend)
	if err != nil {
		logger.Warn("audio unavailable, continuing without voice", "backend", cfg.Audio.Backend, "error", err)
	}
	if device != nil {
		defer device.Close()
	}

	orchestratorOpts := []orchestration.OrchestratorOption{
		orchestration.WithAnswerStream(answers.NewClient(cfg.Answers.Endpoint, answerClientOptions(cfg.Answers)...)),
		orchestration.WithSpeaking(cfg.Speaking),
	}
	if device != nil && cfg.VoiceEnabled() {
		orchestratorOpts = append(orchestratorOpts, orchestration.WithSpeechCapture(
			sttdeepgram.NewListenClient(device,
				sttdeepgram.WithAPIKey(cfg.Deepgram.APIKey),
				sttdeepgram.WithModel(cfg.Deepgram.Model),
				sttdeepgram.WithLanguage(cfg.Deepgram.Language),
			),
		))

		speakClient, err := ttsdeepgram.NewSpeakClient(device,
			ttsdeepgram.WithAPIKey(cfg.Deepgram.APIKey),
			ttsdeepgram.WithVoice(ttsdeepgram.Voice(cfg.Deepgram.Voice)),
		)
		if err != nil {
			logger.Warn("text-to-speech unavailable", "error", err)
		} else {
			defer speakClient.Close()
			orchestratorOpts = append(orchestratorOpts, orchestration.WithSynthesizer(speakClient))
		}
	} else {
		logger.Info("voice disabled", "backend", cfg.Audio.Backend, "has_api_key", cfg.Deepgram.APIKey != "")
	}

	orchestrator := orchestration.NewOrchestrator(orchestratorOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	program := tea.NewProgram(newModel(orchestrator), tea.WithAltScreen())
	orchestrator.Orchestrate(ctx, sessionCallbacks(program)...)
	defer orchestrator.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer stop()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("terminal client failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		program.Quit()
		return nil
	})

	return group.Wait()
}

func answerClientOptions(cfg config.AnswersConfig) []answers.ClientOption {
	opts := []answers.ClientOption{answers.WithResponseTimeout(cfg.ResponseTimeout)}
	if cfg.APIKey != "" {
		opts = append(opts, answers.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	return opts
}

func openAudio(backend config.AudioBackend) (audioDevice, error) {
	switch backend {
	case config.AudioBackendMiniaudio:
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.AudioBackendPortaudio:
		client, err := portaudio.NewClient(portaudioBufferSize)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, nil
}

// sessionCallbacks forwards session events to the terminal program.
func sessionCallbacks(program *tea.Program) []orchestration.OrchestrateOption {
	return []orchestration.OrchestrateOption{
		orchestration.WithStateChangedCallback(func(from, to orchestration.SessionState) {
			program.Send(stateChangedMsg{from: from, to: to})
		}),
		orchestration.WithInterimTranscriptionCallback(func(transcript string) {
			program.Send(interimTranscriptMsg(transcript))
		}),
		orchestration.WithTranscriptionCallback(func(transcript string) {
			program.Send(questionMsg(transcript))
		}),
		orchestration.WithResponseCallback(func(response string) {
			program.Send(responseSegmentMsg(response))
		}),
		orchestration.WithSentenceSpokenCallback(func(sentence string) {
			program.Send(sentenceSpokenMsg(sentence))
		}),
		orchestration.WithErrorCallback(func(message string, _ error) {
			program.Send(sessionErrorMsg(message))
		}),
		orchestration.WithNoticeCallback(func(message string) {
			program.Send(noticeMsg(message))
		}),
	}
}
