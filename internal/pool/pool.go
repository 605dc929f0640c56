package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sandbox is one isolated execution context, acquirable for exactly one
// request at a time. Implemented by wasm.Instance.
type Sandbox interface {
	ID() string
	Invoke(ctx context.Context, payload []byte) ([]byte, error)
	Close(ctx context.Context) error
}

// Factory creates a fresh sandbox. Called synchronously on the acquire
// path when no warm instance is available (a cold start).
type Factory func(ctx context.Context) (Sandbox, error)

// Config holds per-module pool settings.
type Config struct {
	Module string

	// MaxInstances is the module's concurrency ceiling: the number of
	// sandboxes that may be checked out at once.
	MaxInstances int

	// MaxIdle bounds the warm free-list.
	MaxIdle int

	// IdleTimeout evicts warm instances unused for this long.
	IdleTimeout time.Duration

	// SweepInterval paces the background eviction sweep. Zero disables
	// the sweeper (useful in tests).
	SweepInterval time.Duration

	// OnDrained runs once after Retire when the last busy sandbox has
	// been released.
	OnDrained func()
}

// Pool manages a bounded set of sandboxes for one module. Warm-idle
// instances sit on a LIFO free-list so acquire is O(1); the concurrency
// ceiling is a buffered channel acting as a semaphore. The free-list
// mutex is the only cross-request shared state and is held for pointer
// swaps only — never across instantiation or guest execution.
type Pool struct {
	cfg     Config
	factory Factory
	logger  *zap.Logger

	// Semaphore: one token per checked-out sandbox.
	slots chan struct{}

	mu      sync.Mutex
	idle    []*Entry
	busy    int
	retired bool

	drainOnce sync.Once
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New creates a pool and starts its eviction sweeper.
func New(cfg Config, factory Factory, logger *zap.Logger) *Pool {
	p := &Pool{
		cfg:       cfg,
		factory:   factory,
		logger:    logger.With(zap.String("component", "instance-pool"), zap.String("module", cfg.Module)),
		slots:     make(chan struct{}, cfg.MaxInstances),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go p.sweep()
	} else {
		close(p.sweepDone)
	}

	return p
}

// Acquire returns a sandbox checked out for one request. It prefers a
// warm-idle instance; below the ceiling it creates one synchronously;
// at the ceiling it blocks until a release or the context deadline,
// then fails with ExhaustedError.
func (p *Pool) Acquire(ctx context.Context) (*Entry, error) {
	select {
	case p.slots <- struct{}{}:
	default:
		// Ceiling reached: wait for a release.
		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, &ExhaustedError{
				Module:  p.cfg.Module,
				Ceiling: p.cfg.MaxInstances,
			}
		}
	}

	p.mu.Lock()
	if p.retired {
		p.mu.Unlock()
		<-p.slots
		return nil, &RetiredError{Module: p.cfg.Module}
	}

	var e *Entry
	if n := len(p.idle); n > 0 {
		e = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	p.busy++
	p.mu.Unlock()

	if e != nil {
		e.state = StateBusy
		e.cold = false
		return e, nil
	}

	// Cold start.
	sb, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.busy--
		p.mu.Unlock()
		<-p.slots
		return nil, err
	}

	return &Entry{sandbox: sb, state: StateBusy, cold: true, createdAt: time.Now()}, nil
}

// Release returns a sandbox after one request. A clean outcome parks it
// warm-idle (free-list permitting); anything else destroys it. A
// poisoned sandbox never reaches the free-list.
func (p *Pool) Release(e *Entry, outcome Outcome) {
	p.mu.Lock()
	p.busy--

	destroy := outcome != OutcomeClean || p.retired || len(p.idle) >= p.cfg.MaxIdle
	if outcome != OutcomeClean {
		e.state = StatePoisoned
	}
	if !destroy {
		e.state = StateWarmIdle
		e.lastUsed = time.Now()
		p.idle = append(p.idle, e)
	}
	drained := p.retired && p.busy == 0
	p.mu.Unlock()

	if destroy {
		p.destroy(e)
	}
	<-p.slots

	if drained {
		p.fireDrained()
	}
}

// Retire drains the pool: idle sandboxes are destroyed immediately,
// busy ones on release, and no further Acquire succeeds. Used when a
// module is replaced or undeployed — in-flight requests finish on the
// old version rather than being killed mid-request.
func (p *Pool) Retire() {
	p.mu.Lock()
	if p.retired {
		p.mu.Unlock()
		return
	}
	p.retired = true
	idle := p.idle
	p.idle = nil
	drained := p.busy == 0
	p.mu.Unlock()

	close(p.stopSweep)
	<-p.sweepDone

	for _, e := range idle {
		p.destroy(e)
	}

	p.logger.Info("Pool retired", zap.Int("idle_destroyed", len(idle)))

	if drained {
		p.fireDrained()
	}
}

// Stats reports the pool's busy and idle counts.
func (p *Pool) Stats() (busy, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy, len(p.idle)
}

func (p *Pool) fireDrained() {
	p.drainOnce.Do(func() {
		if p.cfg.OnDrained != nil {
			p.cfg.OnDrained()
		}
	})
}

func (p *Pool) destroy(e *Entry) {
	if err := e.sandbox.Close(context.Background()); err != nil {
		p.logger.Warn("Failed to close sandbox",
			zap.String("sandbox_id", e.sandbox.ID()),
			zap.Error(err),
		)
	}
}

// sweep evicts idle sandboxes past the idle timeout. Runs off the hot
// path; Acquire never scans for expiry.
func (p *Pool) sweep() {
	defer close(p.sweepDone)

	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.evictExpired(time.Now())
		}
	}
}

func (p *Pool) evictExpired(now time.Time) {
	p.mu.Lock()
	var keep, evict []*Entry
	for _, e := range p.idle {
		if now.Sub(e.lastUsed) > p.cfg.IdleTimeout {
			evict = append(evict, e)
		} else {
			keep = append(keep, e)
		}
	}
	p.idle = keep
	p.mu.Unlock()

	for _, e := range evict {
		p.destroy(e)
	}

	if len(evict) > 0 {
		p.logger.Debug("Evicted idle instances", zap.Int("count", len(evict)))
	}
}
