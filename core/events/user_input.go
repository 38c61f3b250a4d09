package events

const (
	// KindUserTranscriptInterimUpdated identifies interim transcript snapshots.
	KindUserTranscriptInterimUpdated Kind = "user_input.transcript_interim_updated"
	// KindUserTranscriptFinal identifies the final question transcript.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
	// KindUserInputEnded identifies capture ending without a question.
	KindUserInputEnded Kind = "user_input.ended"
)

// UserTranscriptInterimUpdated carries the current interim transcript.
type UserTranscriptInterimUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptInterimUpdated creates a user interim transcript event.
func NewUserTranscriptInterimUpdated(transcript string) UserTranscriptInterimUpdated {
	return UserTranscriptInterimUpdated{Base: NewBase(KindUserTranscriptInterimUpdated), Transcript: transcript}
}

// UserTranscriptFinal carries the question that starts a turn.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a user final transcript event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}

// UserInputEnded marks capture ending without a usable question.
type UserInputEnded struct{ Base }

// NewUserInputEnded creates a user input ended event.
func NewUserInputEnded() UserInputEnded {
	return UserInputEnded{Base: NewBase(KindUserInputEnded)}
}
