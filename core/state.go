package orchestration

// SessionState is the state of the turn state machine.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateListening
	StateProcessing
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	}
	return "unknown"
}
