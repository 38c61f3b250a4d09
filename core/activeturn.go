package orchestration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// activeTurn is the turn currently in Processing. Its fields are owned by
// the session event loop.
type activeTurn struct {
	ID        string
	Question  string
	StartedAt time.Time

	answer            strings.Builder
	answerID          string
	rewrittenQuestion string
	queuedSentences   []string
	spokenSentences   []string

	// speaking is fixed at turn start; text-only turns never build a player
	speaking bool

	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span

	sentences sentenceBuffer
	player    *speechPlayer
	gate      *completionGate
}

func newActiveTurn(ctx context.Context, question string, speaking bool) *activeTurn {
	turn := &activeTurn{
		ID:        uuid.NewString(),
		Question:  question,
		StartedAt: time.Now(),
		speaking:  speaking,
	}

	ctx, span := tracer.Start(ctx, "process turn", trace.WithAttributes(
		attribute.String("assistant_turn.id", turn.ID),
		attribute.Bool("assistant_turn.speaking", speaking),
	))
	turn.ctx, turn.cancel = context.WithCancel(ctx)
	turn.span = span
	return turn
}

func (t *activeTurn) recordChunkMetadata(answerID, rewrittenQuestion string) {
	if answerID != "" {
		t.answerID = answerID
	}
	if rewrittenQuestion != "" {
		t.rewrittenQuestion = rewrittenQuestion
	}
}

// finalise stops everything the turn still has in flight and returns its
// history record.
func (t *activeTurn) finalise(outcome TurnOutcome, err error) Turn {
	t.cancel()
	if t.player != nil {
		t.player.Cancel()
	}

	t.span.SetAttributes(
		attribute.String("assistant_turn.outcome", string(outcome)),
		attribute.Int("assistant_turn.queued_sentences", len(t.queuedSentences)),
		attribute.Int("assistant_turn.spoken_sentences", len(t.spokenSentences)),
		attribute.String("assistant_turn.answer_id", t.answerID),
	)
	errMessage := ""
	if err != nil {
		errMessage = err.Error()
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	}
	t.span.End()

	return Turn{
		ID:                t.ID,
		Question:          t.Question,
		RewrittenQuestion: t.rewrittenQuestion,
		Answer:            t.answer.String(),
		AnswerID:          t.answerID,
		SpokenSentences:   append([]string(nil), t.spokenSentences...),
		Outcome:           outcome,
		Error:             errMessage,
		StartedAt:         t.StartedAt,
		EndedAt:           time.Now(),
	}
}
