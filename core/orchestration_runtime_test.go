package orchestration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/answers"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

// flushEventLoop waits until everything posted so far has been handled.
func flushEventLoop(t *testing.T, o *Orchestrator) {
	t.Helper()

	flushed := make(chan struct{})
	if !o.runtime.post(func() { close(flushed) }) {
		t.Fatalf("expected event loop to accept work")
	}
	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out flushing event loop")
	}
}

type answerStreamStub struct {
	chunks []answers.Chunk
	err    error

	// hold blocks the stream after chunks until closed
	hold chan struct{}
	// ignoreCancel keeps delivering late after the context is cancelled
	ignoreCancel bool
	late         []answers.Chunk

	mu        sync.Mutex
	questions []string
	finished  int
}

func (s *answerStreamStub) StreamAnswer(ctx context.Context, question string, opts ...answers.StreamOption) {
	var options answers.StreamOptions
	for _, opt := range opts {
		opt(&options)
	}

	s.mu.Lock()
	s.questions = append(s.questions, question)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.finished++
		s.mu.Unlock()
	}()

	for _, chunk := range s.chunks {
		options.DataCallback(chunk)
	}
	if s.hold != nil {
		select {
		case <-s.hold:
		case <-ctx.Done():
			if !s.ignoreCancel {
				return
			}
			<-s.hold
		}
	}
	for _, chunk := range s.late {
		options.DataCallback(chunk)
	}

	if s.err != nil {
		options.ErrorCallback(s.err)
		return
	}
	options.CompletionCallback(answers.Summary{MarkerSeen: true, HasAnswer: true, AnswerID: "answer-1"})
}

func (s *answerStreamStub) questionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

func (s *answerStreamStub) finishedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

type speechCaptureStub struct {
	unavailable bool
	startErr    error

	mu       sync.Mutex
	sessions []speechtotext.CaptureOptions
	stops    int
}

func (c *speechCaptureStub) Available() bool { return !c.unavailable }

func (c *speechCaptureStub) StartListening(_ context.Context, opts ...speechtotext.CaptureOption) error {
	options := speechtotext.NewCaptureOptions(opts...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = append(c.sessions, options)
	return c.startErr
}

func (c *speechCaptureStub) StopListening() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func (c *speechCaptureStub) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *speechCaptureStub) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

func (c *speechCaptureStub) session(index int) speechtotext.CaptureOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[index]
}

type sessionRecorder struct {
	mu            sync.Mutex
	states        []SessionState
	errors        []string
	notices       []string
	queued        []string
	spoken        []string
	questions     []string
	answerEnds    []string
	cancellations int
	kinds         []events.Kind
}

func (r *sessionRecorder) options() []OrchestrateOption {
	return []OrchestrateOption{
		WithEventCallback(func(event events.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.kinds = append(r.kinds, event.Kind())
		}),
		WithStateChangedCallback(func(_, to SessionState) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, to)
		}),
		WithErrorCallback(func(message string, _ error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, message)
		}),
		WithNoticeCallback(func(message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.notices = append(r.notices, message)
		}),
		WithSentenceQueuedCallback(func(sentence string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.queued = append(r.queued, sentence)
		}),
		WithSentenceSpokenCallback(func(sentence string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.spoken = append(r.spoken, sentence)
		}),
		WithTranscriptionCallback(func(transcript string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.questions = append(r.questions, transcript)
		}),
		WithResponseEndCallback(func(answer string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.answerEnds = append(r.answerEnds, answer)
		}),
		WithCancellationCallback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.cancellations++
		}),
	}
}

func (r *sessionRecorder) statesSnapshot() []SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.states)
}

func (r *sessionRecorder) errorsSnapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errors)
}

func startOrchestrator(t *testing.T, recorder *sessionRecorder, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()

	o := NewOrchestrator(opts...)
	o.Orchestrate(context.Background(), recorder.options()...)
	t.Cleanup(o.Close)
	return o
}

func waitForState(t *testing.T, o *Orchestrator, state SessionState) {
	t.Helper()
	waitForCondition(t, 2*time.Second, "state "+state.String(), func() bool { return o.State() == state })
}

func waitForHistory(t *testing.T, o *Orchestrator, count int) []Turn {
	t.Helper()
	waitForCondition(t, 2*time.Second, fmt.Sprintf("%d finished turns", count), func() bool {
		return len(o.Snapshot().History) == count
	})
	return o.Snapshot().History
}

func TestSpokenTurnCompletesAfterPlaybackAndListensAgain(t *testing.T) {
	stream := &answerStreamStub{chunks: []answers.Chunk{
		{Answer: "Hello there. How"},
		{Answer: " are you? Fine"},
	}}
	capture := &speechCaptureStub{}
	synthesizer := &synthesizerStub{delay: 5 * time.Millisecond}
	recorder := &sessionRecorder{}
	o := startOrchestrator(t, recorder,
		WithAnswerStream(stream),
		WithSpeechCapture(capture),
		WithSynthesizer(synthesizer),
	)

	o.StartListening()
	waitForCondition(t, 2*time.Second, "capture to start", func() bool { return capture.startCount() == 1 })
	capture.session(0).TranscriptCallback("  How are you?  ")

	waitForCondition(t, 2*time.Second, "capture to restart", func() bool { return capture.startCount() == 2 })
	waitForState(t, o, StateListening)

	expectedSentences := []string{"Hello there.", "How are you?", "Fine"}
	spoken, overlap := synthesizer.snapshot()
	if !slices.Equal(spoken, expectedSentences) {
		t.Fatalf("expected sentences %q, got %q", expectedSentences, spoken)
	}
	if overlap {
		t.Fatalf("expected sentences not to overlap")
	}

	history := o.Snapshot().History
	if len(history) != 1 {
		t.Fatalf("expected one finished turn, got %d", len(history))
	}
	turn := history[0]
	if turn.Outcome != TurnOutcomeCompleted {
		t.Fatalf("expected completed turn, got %q", turn.Outcome)
	}
	if turn.Question != "How are you?" {
		t.Fatalf("expected trimmed question, got %q", turn.Question)
	}
	if turn.Answer != "Hello there. How are you? Fine" {
		t.Fatalf("expected full answer, got %q", turn.Answer)
	}
	if turn.AnswerID != "answer-1" {
		t.Fatalf("expected answer id from completion marker, got %q", turn.AnswerID)
	}
	if !slices.Equal(turn.SpokenSentences, expectedSentences) {
		t.Fatalf("expected spoken sentences in history, got %q", turn.SpokenSentences)
	}

	expectedStates := []SessionState{StateListening, StateProcessing, StateListening}
	if states := recorder.statesSnapshot(); !slices.Equal(states, expectedStates) {
		t.Fatalf("expected states %v, got %v", expectedStates, states)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if !slices.Equal(recorder.queued, expectedSentences) || !slices.Equal(recorder.spoken, expectedSentences) {
		t.Fatalf("expected queued and spoken callbacks to match, got queued=%q spoken=%q", recorder.queued, recorder.spoken)
	}
	if len(recorder.answerEnds) != 1 || recorder.answerEnds[0] != turn.Answer {
		t.Fatalf("expected one response end with the full answer, got %q", recorder.answerEnds)
	}
	if !slices.Contains(recorder.kinds, events.KindTurnCompleted) {
		t.Fatalf("expected turn completed event, got %v", recorder.kinds)
	}
}

func TestTurnWithoutSentencesCompletesOnStreamEnd(t *testing.T) {
	stream := &answerStreamStub{}
	capture := &speechCaptureStub{}
	synthesizer := &synthesizerStub{}
	recorder := &sessionRecorder{}
	o := startOrchestrator(t, recorder,
		WithAnswerStream(stream),
		WithSpeechCapture(capture),
		WithSynthesizer(synthesizer),
	)

	o.SubmitQuestion("anything?")

	waitForCondition(t, 2*time.Second, "capture to be reactivated", func() bool { return capture.startCount() == 1 })
	waitForState(t, o, StateListening)

	history := o.Snapshot().History
	if len(history) != 1 || history[0].Outcome != TurnOutcomeCompleted {
		t.Fatalf("expected one completed turn, got %+v", history)
	}
	if spoken, _ := synthesizer.snapshot(); len(spoken) != 0 {
		t.Fatalf("expected nothing to be spoken, got %q", spoken)
	}
}

func TestTurnWithoutCaptureReturnsToIdle(t *testing.T) {
	stream := &answerStreamStub{chunks: []answers.Chunk{{Answer: "Short answer."}}}
	recorder := &sessionRecorder{}
	o := startOrchestrator(t, recorder,
		WithAnswerStream(stream),
		WithSynthesizer(&synthesizerStub{}),
	)

	o.SubmitQuestion("question")
	waitForHistory(t, o, 1)
	waitForState(t, o, StateIdle)

	expectedStates := []SessionState{StateProcessing, StateIdle}
	if states := recorder.statesSnapshot(); !slices.Equal(states, expectedStates) {
		t.Fatalf("expected states %v, got %v", expectedStates, states)
	}
	snapshot := o.Snapshot()
	if snapshot.Question != "question" || snapshot.Answer != "Short answer." {
		t.Fatalf("expected question and answer to stay visible, got %q / %q", snapshot.Question, snapshot.Answer)
	}
}

func TestCancelDuringPlaybackIgnoresLateResults(t *testing.T) {
	hold := make(chan struct{})
	stream := &answerStreamStub{
		chunks:       []answers.Chunk{{Answer: "First sentence. Second sentence. "}},
		hold:         hold,
		ignoreCancel: true,
		late:         []answers.Chunk{{Answer: "Late text."}},
	}
	synthesizer := &synthesizerStub{block: make(chan struct{})}
	recorder := &sessionRecorder{}
	o := startOrchestrator(t, recorder,
		WithAnswerStream(stream),
		WithSynthesizer(synthesizer),
	)

	o.SubmitQuestion("question")
	waitForCondition(t, 2*time.Second, "first sentence in flight", func() bool {
		synthesizer.mu.Lock()
		defer synthesizer.mu.Unlock()
		return synthesizer.active == 1
	})

	o.Cancel()
	waitForState(t, o, StateIdle)
	waitForCondition(t, 2*time.Second, "playback to stop", func() bool {
		synthesizer.mu.Lock()
		defer synthesizer.mu.Unlock()
		return synthesizer.active == 0
	})

	close(hold)
	waitForCondition(t, 2*time.Second, "stream to finish", func() bool { return stream.finishedCount() == 1 })
	flushEventLoop(t, o)

	if state := o.State(); state != StateIdle {
		t.Fatalf("expected late results to leave the session idle, got %s", state)
	}
	if spoken, _ := synthesizer.snapshot(); len(spoken) != 0 {
		t.Fatalf("expected nothing to be played after cancel, got %q", spoken)
	}

	history := o.Snapshot().History
	if len(history) != 1 {
		t.Fatalf("expected one finished turn, got %d", len(history))
	}
	if history[0].Outcome != TurnOutcomeCancelled {
		t.Fatalf("expected cancelled turn, got %q", history[0].Outcome)
	}
	if history[0].Answer != "First sentence. Second sentence. " {
		t.Fatalf("expected late text to be dropped, got %q", history[0].Answer)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.cancellations != 1 {
		t.Fatalf("expected one cancellation, got %d", recorder.cancellations)
	}
	if len(recorder.answerEnds) != 0 {
		t.Fatalf("expected no response end after cancel, got %q", recorder.answerEnds)
	}
	if len(recorder.errors) != 0 {
		t.Fatalf("expected cancel not to report errors, got %q", recorder.errors)
	}
}

func TestServerErrorEntersErrorStateWithoutDecodingBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("data: {\"answer\":\"should not be read\"}\n"))
	}))
	t.Cleanup(server.Close)

	capture := &speechCaptureStub{}
	recorder := &sessionRecorder{}
	o := startOrchestrator(t, recorder,
		WithAnswerStream(answers.NewClient(server.URL)),
		WithSpeechCapture(capture),
		WithSynthesizer(&synthesizerStub{}),
	)

	o.SubmitQuestion("question")
	waitForState(t, o, StateError)

	expectedMessage := "The server is having trouble right now. Please try again in a moment."
	if errs := recorder.errorsSnapshot(); !slices.Equal(errs, []string{expectedMessage}) {
		t.Fatalf("expected server error message, got %q", errs)
	}
	snapshot := o.Snapshot()
	if snapshot.ErrorMessage != expectedMessage {
		t.Fatalf("expected error message in snapshot, got %q", snapshot.ErrorMessage)
	}
	if snapshot.Answer != "" {
		t.Fatalf("expected error body not to be decoded, got %q", snapshot.Answer)
	}
	if len(snapshot.History) != 1 || snapshot.History[0].Outcome != TurnOutcomeFailed {
		t.Fatalf("expected one failed turn, got %+v", snapshot.History)
	}
	if capture.startCount() != 0 {
		t.Fatalf("expected capture not to be reactivated after an error")
	}

	o.Retry()
	waitForState(t, o, StateIdle)
	if message := o.Snapshot().ErrorMessage; message != "" {
		t.Fatalf("expected retry to clear the error, got %q", message)
	}
}

func TestMalformedLineIsSkippedInTextOnlyMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data: {\"answer\":\"Hello \"}\n"))
		_, _ = w.Write([]byte("data: {not json\n"))
		_, _ = w.Write([]byte("data: {\"answer\":\"world.\"}\n"))
		_, _ = w.Write([]byte("data: {\"answer\":\"\",\"isComplete\":true,\"answerId\":\"a-7\"}\n"))
	}))
	t.Cleanup(server.Close)

	recorder := &sessionRecorder{}
	o := startOrchestrator(t, recorder, WithAnswerStream(answers.NewClient(server.URL)))

	o.SubmitQuestion("question")
	history := waitForHistory(t, o, 1)
	waitForState(t, o, StateIdle)

	if history[0].Outcome != TurnOutcomeCompleted || history[0].Answer != "Hello world." {
		t.Fatalf("expected completed turn with skipped line, got %+v", history[0])
	}
	if history[0].AnswerID != "a-7" {
		t.Fatalf("expected marker answer id, got %q", history[0].AnswerID)
	}
	if o.IsSpeaking() {
		t.Fatalf("expected text-only session without a synthesizer")
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if !slices.Equal(recorder.notices, []string{textOnlyNotice}) {
		t.Fatalf("expected text-only notice, got %q", recorder.notices)
	}
	if len(recorder.queued) != 0 || len(recorder.errors) != 0 {
		t.Fatalf("expected no sentences and no errors, got queued=%q errors=%q", recorder.queued, recorder.errors)
	}
}

func TestMutedSessionDoesNotSpeak(t *testing.T) {
	stream := &answerStreamStub{chunks: []answers.Chunk{{Answer: "One. Two."}}}
	synthesizer := &synthesizerStub{}
	o := startOrchestrator(t, &sessionRecorder{},
		WithAnswerStream(stream),
		WithSynthesizer(synthesizer),
	)

	o.SetSpeaking(false)
	o.SubmitQuestion("question")
	waitForHistory(t, o, 1)
	waitForState(t, o, StateIdle)

	if spoken, _ := synthesizer.snapshot(); len(spoken) != 0 {
		t.Fatalf("expected muted session not to speak, got %q", spoken)
	}

	o.SetSpeaking(true)
	o.SubmitQuestion("again")
	waitForHistory(t, o, 2)
	waitForState(t, o, StateIdle)

	if spoken, _ := synthesizer.snapshot(); !slices.Equal(spoken, []string{"One.", "Two."}) {
		t.Fatalf("expected unmuted turn to speak, got %q", spoken)
	}
}

func TestSynthesisFailureStillCompletesTurn(t *testing.T) {
	stream := &answerStreamStub{chunks: []answers.Chunk{{Answer: "One. Two. Three."}}}
	// slow enough for every sentence to be queued before the failure
	synthesizer := &synthesizerStub{failOn: "Two.", delay: 20 * time.Millisecond}
	recorder := &sessionRecorder{}
	o := startOrchestrator(t, recorder,
		WithAnswerStream(stream),
		WithSynthesizer(synthesizer),
	)

	o.SubmitQuestion("question")
	history := waitForHistory(t, o, 1)
	waitForState(t, o, StateIdle)

	if history[0].Outcome != TurnOutcomeCompleted {
		t.Fatalf("expected synthesis failure not to fail the turn, got %q", history[0].Outcome)
	}
	if !slices.Equal(history[0].SpokenSentences, []string{"One."}) {
		t.Fatalf("expected playback to stop at the failed sentence, got %q", history[0].SpokenSentences)
	}
	if errs := recorder.errorsSnapshot(); len(errs) != 0 {
		t.Fatalf("expected no session error, got %q", errs)
	}
}

func TestPrimaryActionCyclesThroughStates(t *testing.T) {
	stream := &answerStreamStub{hold: make(chan struct{})}
	capture := &speechCaptureStub{}
	o := startOrchestrator(t, &sessionRecorder{},
		WithAnswerStream(stream),
		WithSpeechCapture(capture),
	)

	o.PrimaryAction()
	waitForState(t, o, StateListening)

	o.PrimaryAction()
	waitForState(t, o, StateIdle)
	waitForCondition(t, 2*time.Second, "capture to stop", func() bool { return capture.stopCount() >= 1 })

	o.PrimaryAction()
	waitForState(t, o, StateListening)
	waitForCondition(t, 2*time.Second, "second capture", func() bool { return capture.startCount() == 2 })
	capture.session(1).TranscriptCallback("question")
	waitForState(t, o, StateProcessing)

	o.PrimaryAction()
	waitForState(t, o, StateIdle)
	if history := waitForHistory(t, o, 1); history[0].Outcome != TurnOutcomeCancelled {
		t.Fatalf("expected primary action to cancel the turn, got %q", history[0].Outcome)
	}
}

func TestStaleCaptureResultsAreIgnored(t *testing.T) {
	stream := &answerStreamStub{}
	capture := &speechCaptureStub{}
	o := startOrchestrator(t, &sessionRecorder{},
		WithAnswerStream(stream),
		WithSpeechCapture(capture),
	)

	o.StartListening()
	waitForCondition(t, 2*time.Second, "capture to start", func() bool { return capture.startCount() == 1 })
	o.StopListening()
	waitForState(t, o, StateIdle)

	capture.session(0).TranscriptCallback("too late")
	capture.session(0).ErrorCallback(errors.New("too late"))
	flushEventLoop(t, o)

	if state := o.State(); state != StateIdle {
		t.Fatalf("expected stale capture results to be ignored, got %s", state)
	}
	if stream.questionCount() != 0 {
		t.Fatalf("expected no turn from a stale transcript")
	}
}

func TestCaptureEndingsWithoutQuestion(t *testing.T) {
	tests := []struct {
		name    string
		deliver func(speechtotext.CaptureOptions)
	}{
		{
			name:    "empty transcript",
			deliver: func(options speechtotext.CaptureOptions) { options.TranscriptCallback("   ") },
		},
		{
			name: "no speech",
			deliver: func(options speechtotext.CaptureOptions) {
				options.ErrorCallback(speechtotext.NewCaptureError(speechtotext.CodeNoSpeech, nil))
			},
		},
		{
			name: "aborted",
			deliver: func(options speechtotext.CaptureOptions) {
				options.ErrorCallback(speechtotext.NewCaptureError(speechtotext.CodeAborted, nil))
			},
		},
		{
			name:    "ended",
			deliver: func(options speechtotext.CaptureOptions) { options.EndedCallback() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := &answerStreamStub{}
			capture := &speechCaptureStub{}
			recorder := &sessionRecorder{}
			o := startOrchestrator(t, recorder,
				WithAnswerStream(stream),
				WithSpeechCapture(capture),
			)

			o.StartListening()
			waitForCondition(t, 2*time.Second, "capture to start", func() bool { return capture.startCount() == 1 })
			tt.deliver(capture.session(0))
			waitForState(t, o, StateIdle)
			flushEventLoop(t, o)

			if stream.questionCount() != 0 {
				t.Fatalf("expected no turn to start")
			}
			if errs := recorder.errorsSnapshot(); len(errs) != 0 {
				t.Fatalf("expected no errors, got %q", errs)
			}
		})
	}
}

func TestCaptureFailures(t *testing.T) {
	tests := []struct {
		name            string
		capture         *speechCaptureStub
		withoutCapture  bool
		unsupported     bool
		expectedMessage string
	}{
		{
			name:            "no capture",
			withoutCapture:  true,
			unsupported:     true,
			expectedMessage: "Sorry, voice input is not supported here.",
		},
		{
			name:            "unavailable",
			capture:         &speechCaptureStub{unavailable: true},
			unsupported:     true,
			expectedMessage: "Sorry, voice input is not supported here.",
		},
		{
			name:            "unsupported code",
			capture:         &speechCaptureStub{startErr: speechtotext.NewCaptureError(speechtotext.CodeUnsupported, nil)},
			unsupported:     true,
			expectedMessage: "Sorry, voice input is not supported here.",
		},
		{
			name:            "not allowed",
			capture:         &speechCaptureStub{startErr: speechtotext.NewCaptureError(speechtotext.CodeNotAllowed, nil)},
			expectedMessage: "Microphone access is needed. Please allow it.",
		},
		{
			name:            "audio capture",
			capture:         &speechCaptureStub{startErr: speechtotext.NewCaptureError(speechtotext.CodeAudioCapture, nil)},
			expectedMessage: "Speech recognition error: audio-capture",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &sessionRecorder{}
			opts := []OrchestratorOption{WithAnswerStream(&answerStreamStub{})}
			if !tt.withoutCapture {
				opts = append(opts, WithSpeechCapture(tt.capture))
			}
			o := startOrchestrator(t, recorder, opts...)

			o.PrimaryAction()
			waitForState(t, o, StateError)

			if errs := recorder.errorsSnapshot(); !slices.Equal(errs, []string{tt.expectedMessage}) {
				t.Fatalf("expected message %q, got %q", tt.expectedMessage, errs)
			}

			o.PrimaryAction()
			waitForState(t, o, StateIdle)

			startsBefore := 0
			if tt.capture != nil {
				startsBefore = tt.capture.startCount()
			}
			o.PrimaryAction()
			flushEventLoop(t, o)

			if !tt.unsupported {
				waitForState(t, o, StateError)
				return
			}

			if state := o.State(); state != StateIdle {
				t.Fatalf("expected unsupported capture to stay idle, got %s", state)
			}
			if tt.capture != nil && tt.capture.startCount() != startsBefore {
				t.Fatalf("expected capture not to be started again")
			}
			recorder.mu.Lock()
			defer recorder.mu.Unlock()
			if len(recorder.errors) != 1 {
				t.Fatalf("expected no second error, got %q", recorder.errors)
			}
			if count := len(recorder.notices); count == 0 || recorder.notices[count-1] != typedOnlyNotice {
				t.Fatalf("expected typed-only notice, got %q", recorder.notices)
			}
		})
	}
}

func TestUnsupportedCaptureStillAcceptsTypedQuestions(t *testing.T) {
	stream := &answerStreamStub{chunks: []answers.Chunk{{Answer: "Sure."}}}
	capture := &speechCaptureStub{unavailable: true}
	o := startOrchestrator(t, &sessionRecorder{},
		WithAnswerStream(stream),
		WithSpeechCapture(capture),
	)

	o.PrimaryAction()
	waitForState(t, o, StateError)
	o.PrimaryAction()
	waitForState(t, o, StateIdle)

	o.SubmitQuestion("typed")
	history := waitForHistory(t, o, 1)
	if history[0].Outcome != TurnOutcomeCompleted {
		t.Fatalf("expected completed turn, got %q", history[0].Outcome)
	}
	waitForState(t, o, StateIdle)
	if capture.startCount() != 0 {
		t.Fatalf("expected capture never to start, got %d", capture.startCount())
	}
}

func TestSubmitQuestionWhileListeningStopsCapture(t *testing.T) {
	stream := &answerStreamStub{}
	capture := &speechCaptureStub{}
	o := startOrchestrator(t, &sessionRecorder{},
		WithAnswerStream(stream),
		WithSpeechCapture(capture),
	)

	o.StartListening()
	waitForCondition(t, 2*time.Second, "capture to start", func() bool { return capture.startCount() == 1 })
	o.SubmitQuestion("typed question")

	waitForHistory(t, o, 1)
	waitForCondition(t, 2*time.Second, "first capture to stop", func() bool { return capture.stopCount() >= 1 })
	if stream.questionCount() != 1 {
		t.Fatalf("expected one streamed question, got %d", stream.questionCount())
	}

	// capture of the finished session must not start a second turn
	capture.session(0).TranscriptCallback("spoken question")
	flushEventLoop(t, o)
	if stream.questionCount() != 1 {
		t.Fatalf("expected transcript of released capture to be ignored")
	}
}

func TestSubmitQuestionIgnoredWhileProcessing(t *testing.T) {
	stream := &answerStreamStub{hold: make(chan struct{})}
	o := startOrchestrator(t, &sessionRecorder{}, WithAnswerStream(stream))

	o.SubmitQuestion("first")
	waitForState(t, o, StateProcessing)
	o.SubmitQuestion("second")
	o.SubmitQuestion("   ")
	flushEventLoop(t, o)

	if stream.questionCount() != 1 {
		t.Fatalf("expected only the first question to stream, got %d", stream.questionCount())
	}

	close(stream.hold)
	waitForState(t, o, StateIdle)
}

func TestCloseCancelsActiveTurn(t *testing.T) {
	stream := &answerStreamStub{hold: make(chan struct{})}
	o := NewOrchestrator(WithAnswerStream(stream))
	o.Orchestrate(context.Background())

	o.SubmitQuestion("question")
	waitForState(t, o, StateProcessing)
	o.Close()

	if state := o.State(); state != StateIdle {
		t.Fatalf("expected close to return to idle, got %s", state)
	}
	history := o.Snapshot().History
	if len(history) != 1 || history[0].Outcome != TurnOutcomeCancelled {
		t.Fatalf("expected close to cancel the turn, got %+v", history)
	}
	waitForCondition(t, 2*time.Second, "stream to stop", func() bool { return stream.finishedCount() == 1 })
}

func TestCloseBeforeOrchestrateIsSafe(t *testing.T) {
	o := NewOrchestrator()
	o.Close()
	o.Close()

	o.Orchestrate(context.Background())
	o.SubmitQuestion("ignored")

	if o.runtime.started.Load() {
		t.Fatalf("expected closed orchestrator not to start")
	}
}

func TestContextCancellationClosesOrchestrator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := NewOrchestrator(WithAnswerStream(&answerStreamStub{}))
	o.Orchestrate(ctx)

	cancel()
	waitForCondition(t, 2*time.Second, "runtime to close", o.runtime.isClosed)
}

func TestFatalStreamErrorCancelsPlayback(t *testing.T) {
	hold := make(chan struct{})
	stream := &answerStreamStub{
		chunks: []answers.Chunk{{Answer: "First. Second. "}},
		hold:   hold,
		err:    &answers.StatusError{StatusCode: http.StatusInternalServerError, Status: "500 Internal Server Error"},
	}
	synthesizer := &synthesizerStub{block: make(chan struct{})}
	recorder := &sessionRecorder{}
	o := startOrchestrator(t, recorder,
		WithAnswerStream(stream),
		WithSynthesizer(synthesizer),
	)

	o.SubmitQuestion("question")
	activeSpeech := func() int {
		synthesizer.mu.Lock()
		defer synthesizer.mu.Unlock()
		return synthesizer.active
	}
	waitForCondition(t, 2*time.Second, "playback to start", func() bool { return activeSpeech() == 1 })

	close(hold)
	waitForState(t, o, StateError)
	waitForCondition(t, 2*time.Second, "playback to stop", func() bool { return activeSpeech() == 0 })

	flushEventLoop(t, o)
	time.Sleep(50 * time.Millisecond)
	if active := activeSpeech(); active != 0 {
		t.Fatalf("expected queued sentences not to play after failure, got %d active", active)
	}

	if spoken, _ := synthesizer.snapshot(); len(spoken) != 0 {
		t.Fatalf("expected nothing to finish playing, got %q", spoken)
	}
	history := o.Snapshot().History
	if len(history) != 1 || history[0].Outcome != TurnOutcomeFailed {
		t.Fatalf("expected one failed turn, got %+v", history)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.spoken) != 0 {
		t.Fatalf("expected no spoken callbacks, got %q", recorder.spoken)
	}
	expected := []string{"The server is having trouble right now. Please try again in a moment."}
	if !slices.Equal(recorder.errors, expected) {
		t.Fatalf("expected %q, got %q", expected, recorder.errors)
	}
}

func TestPlaybackDrainedMidStreamWaitsForLaterSentences(t *testing.T) {
	hold := make(chan struct{})
	stream := &answerStreamStub{
		chunks: []answers.Chunk{{Answer: "First. "}},
		hold:   hold,
		late:   []answers.Chunk{{Answer: "Second. tail"}},
	}
	capture := &speechCaptureStub{}
	recorder := &sessionRecorder{}
	o := startOrchestrator(t, recorder,
		WithAnswerStream(stream),
		WithSpeechCapture(capture),
		WithSynthesizer(&synthesizerStub{}),
	)

	o.SubmitQuestion("question")
	spokenCallbacks := func() []string {
		recorder.mu.Lock()
		defer recorder.mu.Unlock()
		return slices.Clone(recorder.spoken)
	}
	waitForCondition(t, 2*time.Second, "first sentence to play", func() bool {
		return slices.Equal(spokenCallbacks(), []string{"First."})
	})
	flushEventLoop(t, o)

	if state := o.State(); state != StateProcessing {
		t.Fatalf("expected turn to stay processing while the stream is open, got %s", state)
	}
	if history := o.Snapshot().History; len(history) != 0 {
		t.Fatalf("expected no finished turn yet, got %+v", history)
	}

	close(hold)
	waitForCondition(t, 2*time.Second, "capture to restart", func() bool { return capture.startCount() == 1 })
	waitForState(t, o, StateListening)

	expected := []string{"First.", "Second.", "tail"}
	if spoken := spokenCallbacks(); !slices.Equal(spoken, expected) {
		t.Fatalf("expected %q, got %q", expected, spoken)
	}
	history := o.Snapshot().History
	if len(history) != 1 || history[0].Outcome != TurnOutcomeCompleted {
		t.Fatalf("expected one completed turn, got %+v", history)
	}
}
