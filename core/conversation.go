package orchestration

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"
)

type TurnOutcome string

const (
	TurnOutcomeCompleted TurnOutcome = "completed"
	TurnOutcomeCancelled TurnOutcome = "cancelled"
	TurnOutcomeFailed    TurnOutcome = "failed"
)

// Turn is a finished question and answer cycle.
type Turn struct {
	ID                string
	Question          string
	RewrittenQuestion string
	Answer            string
	AnswerID          string
	SpokenSentences   []string
	Outcome           TurnOutcome
	Error             string
	StartedAt         time.Time
	EndedAt           time.Time
}

// Conversation is a point-in-time view of the session.
type Conversation struct {
	State SessionState
	// Question and Answer are what is currently shown, they survive the end
	// of their turn until capture starts again
	Question     string
	Answer       string
	ErrorMessage string
	ActiveTurnID string
	History      []Turn
}

type conversation struct {
	mu sync.RWMutex

	turns        []Turn
	state        SessionState
	question     string
	answer       string
	errorMessage string
	activeTurnID string
}

func (c *conversation) Snapshot() Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := Conversation{
		State:        c.state,
		Question:     c.question,
		Answer:       c.answer,
		ErrorMessage: c.errorMessage,
		ActiveTurnID: c.activeTurnID,
	}
	if err := copier.CopyWithOption(&snapshot.History, &c.turns, copier.Option{DeepCopy: true}); err != nil {
		logger.Warn("failed to copy conversation history", "error", err)
	}
	return snapshot
}

func (c *conversation) History() []Turn {
	return c.Snapshot().History
}

func (c *conversation) setState(state SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *conversation) clearCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.question = ""
	c.answer = ""
}

func (c *conversation) setError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorMessage = message
}

func (c *conversation) beginTurn(turnID, question string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeTurnID = turnID
	c.question = question
	c.answer = ""
}

func (c *conversation) appendAnswer(segment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answer += segment
}

func (c *conversation) finishTurn(turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeTurnID == turn.ID {
		c.activeTurnID = ""
	}
	c.turns = append(c.turns, turn)
}
