package events

const (
	// KindSessionStateChanged identifies session state transitions.
	KindSessionStateChanged Kind = "session.state_changed"
	// KindSessionError identifies fatal session failures.
	KindSessionError Kind = "session.error"
	// KindSessionNotice identifies non-fatal user notices.
	KindSessionNotice Kind = "session.notice"
)

// SessionStateChanged reports a session state transition.
type SessionStateChanged struct {
	Base
	From string
	To   string
}

// NewSessionStateChanged creates a session state changed event.
func NewSessionStateChanged(from, to string) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), From: from, To: to}
}

// SessionError carries a fatal failure together with the message shown to
// the user.
type SessionError struct {
	Base
	ErrorKind string
	Message   string
	Err       error
}

// NewSessionError creates a session error event.
func NewSessionError(errorKind, message string, err error) SessionError {
	return SessionError{Base: NewBase(KindSessionError), ErrorKind: errorKind, Message: message, Err: err}
}

// SessionNotice carries a non-fatal message for the user.
type SessionNotice struct {
	Base
	Message string
}

// NewSessionNotice creates a session notice event.
func NewSessionNotice(message string) SessionNotice {
	return SessionNotice{Base: NewBase(KindSessionNotice), Message: message}
}
