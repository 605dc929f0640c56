package pool

import "time"

// State is the lifecycle position of a pooled sandbox.
type State int

const (
	// StateCold: created but never parked.
	StateCold State = iota
	// StateWarmIdle: on the free-list, ready for O(1) reuse.
	StateWarmIdle
	// StateBusy: checked out, running at most one request.
	StateBusy
	// StatePoisoned: faulted or force-terminated; never reused.
	StatePoisoned
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateWarmIdle:
		return "warm-idle"
	case StateBusy:
		return "busy"
	case StatePoisoned:
		return "poisoned"
	default:
		return "unknown"
	}
}

// Outcome classifies how a request left its sandbox.
type Outcome int

const (
	// OutcomeClean: the sandbox may serve another request.
	OutcomeClean Outcome = iota
	// OutcomePoisoned: fault or forced termination; destroy the sandbox.
	OutcomePoisoned
)

func (o Outcome) String() string {
	if o == OutcomeClean {
		return "clean"
	}
	return "poisoned"
}

// Entry is a pooled sandbox with its lifecycle bookkeeping. Owned
// exclusively by the pool while idle and by the acquiring caller while
// busy; state transitions happen on those ownership edges only.
type Entry struct {
	sandbox   Sandbox
	state     State
	cold      bool
	createdAt time.Time
	lastUsed  time.Time
}

// Sandbox returns the underlying execution context.
func (e *Entry) Sandbox() Sandbox {
	return e.sandbox
}

// State returns the entry's lifecycle state.
func (e *Entry) State() State {
	return e.state
}

// ColdStart reports whether this checkout created a fresh sandbox
// rather than reusing a warm one.
func (e *Entry) ColdStart() bool {
	return e.cold
}
