package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasmfaas/internal/capability"
	"github.com/woxQAQ/wasmfaas/internal/pool"
	"github.com/woxQAQ/wasmfaas/internal/registry"
	"github.com/woxQAQ/wasmfaas/pkg/protocol"
)

// Supervisor runs one request on an acquired sandbox and classifies
// the outcome. It owns the release: a sandbox that faulted or blew its
// deadline is poisoned and never returns to the warm pool, while a
// clean run, including one that merely had a capability denied, parks
// the sandbox for reuse.
type Supervisor struct {
	logger *zap.Logger
}

// NewSupervisor creates a supervisor.
func NewSupervisor(logger *zap.Logger) *Supervisor {
	return &Supervisor{
		logger: logger.With(zap.String("component", "supervisor")),
	}
}

// Execute drives the guest handle call for one event. The capability
// session rides the context so host calls resolve against this
// request's grants and nothing else's.
func (s *Supervisor) Execute(ctx context.Context, mod *registry.Module, entry *pool.Entry, ev *TriggerEvent, ceiling time.Duration) *Result {
	session := mod.Broker.NewSession(ev.ID)
	ctx = capability.WithSession(ctx, session)

	res := &Result{
		InstanceID: entry.Sandbox().ID(),
		ColdStart:  entry.ColdStart(),
	}

	payload, err := json.Marshal(&protocol.GuestRequest{
		Method:  ev.Method,
		Path:    ev.Path,
		Headers: ev.Headers,
		Body:    ev.Body,
	})
	if err != nil {
		mod.Pool.Release(entry, pool.OutcomeClean)
		res.State = StateFailed
		res.Err = err
		return res
	}

	out, invokeErr := entry.Sandbox().Invoke(ctx, payload)

	outcome := pool.OutcomeClean

	switch {
	case invokeErr != nil:
		// A trap, a memory violation, or a forced termination leaves
		// guest state unknown. Destroy the sandbox either way.
		outcome = pool.OutcomePoisoned
		if ctx.Err() == context.DeadlineExceeded {
			res.State = StateTimedOut
			res.Err = &TimeoutError{Module: ev.Module, RequestID: ev.ID, Ceiling: ceiling}
		} else {
			res.State = StateFailed
			res.Err = invokeErr
		}

	case out == nil:
		// The guest declined the return-value path. It may have
		// answered through response_write instead.
		if status, body, ok := session.Response(); ok {
			res.State = StateCompleted
			res.Response = &protocol.GuestResponse{Status: status, Body: body}
		} else if denied := session.Denied(); len(denied) > 0 {
			// Denial fails this request only. The instance ran to
			// completion and stays reusable.
			res.State = StateFailed
			res.Err = &capability.DeniedError{Module: ev.Module, Capability: denied[0]}
			s.logger.Warn("Request denied capability",
				zap.String("request_id", ev.ID),
				zap.String("module", ev.Module),
				zap.String("capability", string(denied[0])),
			)
		} else {
			res.State = StateFailed
			res.Err = &HandlerError{Module: ev.Module, RequestID: ev.ID, Reason: "guest produced no response"}
		}

	default:
		// An explicit response_write wins over the return value.
		if status, body, ok := session.Response(); ok {
			res.State = StateCompleted
			res.Response = &protocol.GuestResponse{Status: status, Body: body}
			break
		}

		var gr protocol.GuestResponse
		if err := json.Unmarshal(out, &gr); err != nil {
			// A guest that corrupts its own output is not trusted
			// with another request.
			outcome = pool.OutcomePoisoned
			res.State = StateFailed
			res.Err = &HandlerError{Module: ev.Module, RequestID: ev.ID, Reason: "malformed response payload"}
		} else {
			res.State = StateCompleted
			res.Response = &gr
		}
	}

	mod.Pool.Release(entry, outcome)
	return res
}
