// Package voice runs the hands-free wake word state machine on top of a
// speech recognition engine.
package voice

import (
	"context"
	"sync"
)

// Mode selects how a recognition session is used.
type Mode string

const (
	// ModeWake listens continuously for the wake phrase.
	ModeWake Mode = "wake"
	// ModeCommand captures a single utterance after the wake phrase.
	ModeCommand Mode = "command"
)

// Session describes one recognition run. Generation identifies the run in
// the events it produces.
type Session struct {
	Generation     int64  `json:"generation"`
	Mode           Mode   `json:"mode"`
	Lang           string `json:"lang"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interimResults"`
}

// Recognizer is a speech recognition capability. Results arrive
// asynchronously as Events passed to Controller.HandleEvent.
type Recognizer interface {
	Start(ctx context.Context, s Session) error
	Stop(ctx context.Context, generation int64) error
}

// EventKind is the type of a recogniser event.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventResult EventKind = "result"
	EventEnd    EventKind = "end"
	EventError  EventKind = "error"
)

// Engine error codes with special handling.
const (
	ErrNoSpeech   = "no-speech"
	ErrNotAllowed = "not-allowed"
)

// Event is reported by the recogniser for a session. For results,
// Transcript holds everything heard in the session so far.
type Event struct {
	Generation int64     `json:"generation"`
	Kind       EventKind `json:"event"`
	Transcript string    `json:"transcript,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Exclusive keeps at most one session of the wrapped recogniser running.
// Starting a session stops the previous one first.
type Exclusive struct {
	next Recognizer

	mu     sync.Mutex
	active int64
}

// NewExclusive wraps next.
func NewExclusive(next Recognizer) *Exclusive {
	return &Exclusive{next: next}
}

func (e *Exclusive) Start(ctx context.Context, s Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != 0 {
		if err := e.next.Stop(ctx, e.active); err != nil {
			return err
		}
		e.active = 0
	}
	if err := e.next.Start(ctx, s); err != nil {
		return err
	}
	e.active = s.Generation
	return nil
}

// Stop stops generation if it is the running session.
func (e *Exclusive) Stop(ctx context.Context, generation int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == 0 || e.active != generation {
		return nil
	}
	e.active = 0
	return e.next.Stop(ctx, generation)
}

// Ended records that generation finished on its own.
func (e *Exclusive) Ended(generation int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == generation {
		e.active = 0
	}
}

// Active returns the running generation, or 0.
func (e *Exclusive) Active() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}
