package events

import (
	"strings"
	"sync/atomic"
	"time"
)

// Kind names an event as "<family>.<name>".
type Kind string

// Family returns the part of the kind before the first dot.
func (k Kind) Family() string {
	family, _, _ := strings.Cut(string(k), ".")
	return family
}

type Event interface {
	Kind() Kind
	Timestamp() time.Time
	// Sequence orders events of the process, later events have larger
	// sequence numbers.
	Sequence() uint64
}

var lastSequence atomic.Uint64

type Base struct {
	kind      Kind
	timestamp time.Time
	sequence  uint64
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now(), sequence: lastSequence.Add(1)}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

func (b Base) Sequence() uint64 {
	return b.sequence
}
