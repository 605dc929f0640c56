package dispatch

import (
	"fmt"
	"time"
)

// OverloadedError occurs when the admission queue is full. The caller
// should back off and retry; nothing was executed.
type OverloadedError struct {
	QueueDepth int
}

func (e *OverloadedError) Error() string {
	return fmt.Sprintf("scheduler queue full (depth %d), request rejected", e.QueueDepth)
}

// TimeoutError occurs when a request exceeds its time ceiling, whether
// it spent that time queued or executing.
type TimeoutError struct {
	Module    string
	RequestID string
	Ceiling   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request '%s' to module '%s' exceeded its %s time ceiling",
		e.RequestID, e.Module, e.Ceiling)
}

// HandlerError occurs when guest code ran but produced no usable
// response.
type HandlerError struct {
	Module    string
	RequestID string
	Reason    string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("module '%s' handler failed for request '%s': %s",
		e.Module, e.RequestID, e.Reason)
}
