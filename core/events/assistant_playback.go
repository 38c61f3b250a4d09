package events

const (
	// KindAssistantPlaybackSentencePlayed identifies a sentence finishing playback.
	KindAssistantPlaybackSentencePlayed Kind = "assistant_playback.sentence_played"
	// KindAssistantPlaybackEnded identifies the playback completion milestone.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackSentencePlayed marks a sentence that finished playing.
type AssistantPlaybackSentencePlayed struct {
	Base
	Sentence string
}

// NewAssistantPlaybackSentencePlayed creates a sentence played event.
func NewAssistantPlaybackSentencePlayed(sentence string) AssistantPlaybackSentencePlayed {
	return AssistantPlaybackSentencePlayed{Base: NewBase(KindAssistantPlaybackSentencePlayed), Sentence: sentence}
}

// AssistantPlaybackEnded marks the end of playback for the turn. Degraded is
// set when remaining sentences were discarded after a synthesis failure.
type AssistantPlaybackEnded struct {
	Base
	Degraded bool
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(degraded bool) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Degraded: degraded}
}
