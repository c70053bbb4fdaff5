package status

import (
	"iter"

	"github.com/JNickson/kubelog-viewer/internal/stream"
)

// Aggregator accumulates info, warning and error messages in arrival order.
// It is independent of the stream phase and not capacity bounded: growth is
// limited only by how long a selection lives.
type Aggregator struct {
	messages []stream.Message
}

func New() *Aggregator {
	return &Aggregator{}
}

// Add records msg. Log messages are ignored; they belong in the log buffer.
func (a *Aggregator) Add(msg stream.Message) {
	if !msg.Kind.IsStatus() {
		return
	}
	a.messages = append(a.messages, msg)
}

func (a *Aggregator) Len() int { return len(a.messages) }

func (a *Aggregator) Count(kind stream.Kind) int {
	n := 0
	for _, m := range a.messages {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// Counts returns the number of messages per status kind, including zeroes.
func (a *Aggregator) Counts() map[stream.Kind]int {
	out := make(map[stream.Kind]int, len(stream.StatusKinds))
	for _, k := range stream.StatusKinds {
		out[k] = 0
	}
	for _, m := range a.messages {
		out[m.Kind]++
	}
	return out
}

// FilterByKind lazily yields the messages of the given kind.
func (a *Aggregator) FilterByKind(kind stream.Kind) iter.Seq[stream.Message] {
	return func(yield func(stream.Message) bool) {
		for _, m := range a.messages {
			if m.Kind != kind {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Clear removes every message of the given kind.
func (a *Aggregator) Clear(kind stream.Kind) {
	kept := a.messages[:0]
	for _, m := range a.messages {
		if m.Kind != kind {
			kept = append(kept, m)
		}
	}
	clear(a.messages[len(kept):])
	a.messages = kept
}

func (a *Aggregator) Reset() {
	a.messages = nil
}
