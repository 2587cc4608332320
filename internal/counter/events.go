package counter

import (
	"github.com/blockedby/chatcount/internal/telegram"
)

// Event is one message on the worker -> orchestrator -> consumer
// stream. Events are immutable after emission; every job produces
// exactly one terminal event (JobFinished, ChatNotFound,
// SessionUnauthorized or WorkerFailed).
type Event interface {
	event()
}

// MessageCounted is emitted for every message a worker processed.
type MessageCounted struct {
	Chat    string
	Session string
	Message telegram.Message
	StartAt int // id this job started counting from
	EndAt   int // id this job stops at (inclusive)
	// LastSeen is the id processed just before this message, or
	// NoLastSeen for the first one. Drives gap detection.
	LastSeen int
}

// JobFinished is the terminal event of a normally ended or cancelled
// job. LastSeen is the last id actually processed.
type JobFinished struct {
	Chat      string
	Session   string
	EndAt     int
	LastSeen  int
	Cancelled bool
}

// ChatNotFound is the terminal event of a job whose chat identifier
// could not be resolved.
type ChatNotFound struct {
	Chat    string
	Session string
}

// SessionUnauthorized is the terminal event of a job whose session
// turned out to be signed out.
type SessionUnauthorized struct {
	Session string
}

// FloodWaitDetected signals that a job looks throttled right now.
// Purely informational; scheduling is not altered.
type FloodWaitDetected struct {
	Chat    string
	Session string
}

// WorkerFailed is the terminal event of a job that hit an unexpected
// remote error. Fatal to this job only.
type WorkerFailed struct {
	Chat    string
	Session string
	Err     error
}

func (MessageCounted) event()      {}
func (JobFinished) event()         {}
func (ChatNotFound) event()        {}
func (SessionUnauthorized) event() {}
func (FloodWaitDetected) event()   {}
func (WorkerFailed) event()        {}
