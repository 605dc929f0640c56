package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasmfaas/internal/config"
	"github.com/woxQAQ/wasmfaas/internal/pool"
	"github.com/woxQAQ/wasmfaas/internal/registry"
)

// Dispatcher admits requests against a global concurrency ceiling and
// routes them to the target module's pool. Admission is two-level: a
// global slot semaphore bounds simultaneous execution, and a bounded
// wait queue in front of it bounds how many requests may stack up
// behind the ceiling. Beyond the queue the dispatcher sheds load with
// Overloaded rather than admitting work it cannot serve. The global
// slot is held for execution only, never while a request waits on its
// module's per-module ceiling.
type Dispatcher struct {
	cfg      config.SchedulerConfig
	registry *registry.Registry
	sup      *Supervisor
	logger   *zap.Logger

	slots  chan struct{}
	queued atomic.Int32
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(cfg config.SchedulerConfig, reg *registry.Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		registry: reg,
		sup:      NewSupervisor(logger),
		logger:   logger.With(zap.String("component", "dispatcher")),
		slots:    make(chan struct{}, cfg.GlobalConcurrency),
	}
}

// Dispatch runs one trigger event to a terminal state. It never
// panics a failure upward: every outcome, success or not, comes back
// as a Result carrying the terminal state and classification.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *TriggerEvent) *Result {
	if ev.Arrived.IsZero() {
		ev.Arrived = time.Now()
	}

	mod, ok := d.registry.Get(ev.Module)
	if !ok {
		return d.finish(ev, &Result{
			State: StateFailed,
			Err:   &registry.NotFoundError{Module: ev.Module},
		})
	}

	// The time ceiling counts from arrival and covers queue wait,
	// instance acquisition, and guest execution alike.
	ceiling := d.ceilingFor(mod)
	ctx, cancel := context.WithDeadline(ctx, ev.Arrived.Add(ceiling))
	defer cancel()

	// Shed before touching the module's pool when the global queue is
	// already full.
	if !d.hasHeadroom() {
		return d.finish(ev, &Result{
			State: StateFailed,
			Err:   &OverloadedError{QueueDepth: d.cfg.QueueDepth},
		})
	}

	entry, err := mod.Pool.Acquire(ctx)
	if err != nil {
		return d.finish(ev, &Result{State: StateFailed, Err: err})
	}

	// The global slot is taken only around execution. A request parked
	// on one module's per-module ceiling holds no global headroom, so
	// a saturated module cannot starve requests to other modules.
	if err := d.admit(ctx, ev, ceiling); err != nil {
		mod.Pool.Release(entry, pool.OutcomeClean)
		res := &Result{State: StateFailed, Err: err}
		if _, ok := err.(*TimeoutError); ok {
			res.State = StateTimedOut
		}
		return d.finish(ev, res)
	}

	res := d.sup.Execute(ctx, mod, entry, ev, ceiling)
	<-d.slots
	return d.finish(ev, res)
}

// hasHeadroom reports whether a new request could execute now or wait
// within the queue bound.
func (d *Dispatcher) hasHeadroom() bool {
	return len(d.slots) < cap(d.slots) || int(d.queued.Load()) < d.cfg.QueueDepth
}

// admit takes a global execution slot, waiting in the bounded queue if
// the ceiling is reached. Returns OverloadedError when the queue is
// full and TimeoutError when the request's deadline expires while it
// is still waiting.
func (d *Dispatcher) admit(ctx context.Context, ev *TriggerEvent, ceiling time.Duration) error {
	select {
	case d.slots <- struct{}{}:
		return nil
	default:
	}

	if int(d.queued.Add(1)) > d.cfg.QueueDepth {
		d.queued.Add(-1)
		return &OverloadedError{QueueDepth: d.cfg.QueueDepth}
	}
	defer d.queued.Add(-1)

	select {
	case d.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return &TimeoutError{Module: ev.Module, RequestID: ev.ID, Ceiling: ceiling}
	}
}

// ceilingFor resolves the request deadline: the manifest's declared
// ceiling, or the system default when the manifest declares none.
func (d *Dispatcher) ceilingFor(mod *registry.Module) time.Duration {
	if ms := mod.Manifest.Limits.TimeCeilingMS; ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return time.Duration(d.cfg.DefaultDeadlineMS) * time.Millisecond
}

// Queued reports how many admitted requests are waiting for a global
// slot.
func (d *Dispatcher) Queued() int {
	return int(d.queued.Load())
}

func (d *Dispatcher) finish(ev *TriggerEvent, res *Result) *Result {
	res.Elapsed = time.Since(ev.Arrived)

	fields := []zap.Field{
		zap.String("request_id", ev.ID),
		zap.String("module", ev.Module),
		zap.String("state", res.State.String()),
		zap.Duration("elapsed", res.Elapsed),
	}
	if res.InstanceID != "" {
		fields = append(fields,
			zap.String("instance_id", res.InstanceID),
			zap.Bool("cold_start", res.ColdStart),
		)
	}

	if res.State == StateCompleted {
		d.logger.Info("Request completed", fields...)
	} else {
		d.logger.Warn("Request failed", append(fields, zap.Error(res.Err))...)
	}

	return res
}
