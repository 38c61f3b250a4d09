package events

// KindAssistantSpeechSentenceQueued identifies sentences handed to synthesis.
const KindAssistantSpeechSentenceQueued Kind = "assistant_speech.sentence_queued"

// AssistantSpeechSentenceQueued carries a sentence queued for synthesis.
type AssistantSpeechSentenceQueued struct {
	Base
	Sentence string
}

// NewAssistantSpeechSentenceQueued creates a sentence queued event.
func NewAssistantSpeechSentenceQueued(sentence string) AssistantSpeechSentenceQueued {
	return AssistantSpeechSentenceQueued{Base: NewBase(KindAssistantSpeechSentenceQueued), Sentence: sentence}
}
