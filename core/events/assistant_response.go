package events

const (
	// KindAssistantResponseSegment identifies streamed answer text.
	KindAssistantResponseSegment Kind = "assistant_response.segment"
	// KindAssistantResponseFinal identifies answer stream completion.
	KindAssistantResponseFinal Kind = "assistant_response.final"
)

// AssistantResponseSegment carries a streamed answer text segment.
type AssistantResponseSegment struct {
	Base
	Segment string
}

// NewAssistantResponseSegment creates an assistant response segment event.
func NewAssistantResponseSegment(segment string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), Segment: segment}
}

// AssistantResponseFinal marks answer stream completion.
type AssistantResponseFinal struct {
	Base
	Answer   string
	AnswerID string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(answer, answerID string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Answer: answer, AnswerID: answerID}
}
