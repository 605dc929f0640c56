package dispatch

import (
	"time"

	"github.com/woxQAQ/wasmfaas/pkg/protocol"
)

// TriggerEvent is one inbound request, normalized off its transport.
// The ingress fills it in; the dispatcher consumes it.
type TriggerEvent struct {
	// ID is a unique request identifier, assigned at arrival.
	ID string

	// Module names the deployed module this event addresses.
	Module string

	Method  string
	Path    string
	Headers map[string]string
	Body    []byte

	// Arrived anchors the request's deadline: the time ceiling counts
	// from arrival, queue wait included.
	Arrived time.Time
}

// RequestState tracks a request through its lifecycle. Terminal states
// are Completed, Failed, and TimedOut.
type RequestState int

const (
	StateReceived RequestState = iota
	StateQueued
	StateDispatched
	StateExecuting
	StateCompleted
	StateFailed
	StateTimedOut
)

func (s RequestState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateQueued:
		return "queued"
	case StateDispatched:
		return "dispatched"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result is the terminal record of one dispatched request.
type Result struct {
	State RequestState

	// Response holds the guest's answer when State is Completed.
	Response *protocol.GuestResponse

	// Err classifies the failure when State is Failed or TimedOut.
	Err error

	// Elapsed is arrival to completion.
	Elapsed time.Duration

	// InstanceID identifies the sandbox that ran the request, when one
	// was acquired.
	InstanceID string

	// ColdStart reports whether the request paid an instantiation.
	ColdStart bool
}
