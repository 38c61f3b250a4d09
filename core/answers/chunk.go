package answers

// Chunk is one decoded payload line of an answer stream.
type Chunk struct {
	// Answer is the next piece of answer text, possibly empty
	Answer string `json:"answer"`
	// IsComplete marks the trailing completion marker of the stream
	IsComplete        bool    `json:"isComplete"`
	HasAnswer         bool    `json:"hasAnswer"`
	AnswerID          string  `json:"answerId"`
	RewrittenQuestion string  `json:"rewrittenQuestion"`
	LLMID             int64   `json:"llmId"`
	FST               float64 `json:"fst"`
	LST               float64 `json:"lst"`
}

// Summary describes a stream that was consumed to the end.
type Summary struct {
	// MarkerSeen reports whether the stream carried a completion marker.
	// The fields below are only set when it did.
	MarkerSeen        bool
	HasAnswer         bool
	AnswerID          string
	RewrittenQuestion string
	LLMID             int64
}

func (s *Summary) record(marker Chunk) {
	s.MarkerSeen = true
	s.HasAnswer = marker.HasAnswer
	s.AnswerID = marker.AnswerID
	s.RewrittenQuestion = marker.RewrittenQuestion
	s.LLMID = marker.LLMID
}
