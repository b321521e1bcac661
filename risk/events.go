package risk

import (
	"time"

	"github.com/rustyeddy/scantrade/internal/id"
)

// EventLogSize is how many system events the governor keeps.
const EventLogSize = 500

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Event is one entry of the system log: pause transitions, rejected
// entries and engine faults.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Level     Level     `json:"level"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
}

// ring is a fixed-size buffer that overwrites its oldest entry.
type ring struct {
	buf  []Event
	next int
	full bool
}

func newRing(n int) *ring { return &ring{buf: make([]Event, n)} }

func (r *ring) push(e Event) {
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// newest returns up to limit events, most recent first. limit <= 0 means all.
func (r *ring) newest(limit int) []Event {
	n := r.len()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

func newEvent(now time.Time, level Level, code, msg string) Event {
	return Event{
		ID:        id.NewAt(now),
		Timestamp: now,
		Type:      "system",
		Level:     level,
		Code:      code,
		Message:   msg,
	}
}
