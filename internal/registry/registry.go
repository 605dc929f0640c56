package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry owns the deployed modules, keyed by their stable name.
// Replacement is atomic: readers either see the old version or the new
// one, and old instances drain rather than dying mid-request.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
	logger  *zap.Logger
}

// NewRegistry creates an empty module registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		modules: make(map[string]*Module),
		logger:  logger.With(zap.String("component", "module-registry")),
	}
}

// Register adds a module under its name.
func (r *Registry) Register(m *Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.Name]; exists {
		return &AlreadyRegisteredError{Module: m.Name}
	}

	r.modules[m.Name] = m

	r.logger.Info("Module registered",
		zap.String("name", m.Name),
		zap.String("digest", m.Digest),
	)

	return nil
}

// Replace atomically swaps the module registered under m.Name and
// retires the previous version, if any. Requests dispatched before the
// swap finish on the old version; requests after it get the new one.
func (r *Registry) Replace(m *Module) {
	r.mu.Lock()
	old := r.modules[m.Name]
	r.modules[m.Name] = m
	r.mu.Unlock()

	if old != nil {
		r.logger.Info("Module replaced, draining previous version",
			zap.String("name", m.Name),
			zap.String("old_digest", old.Digest),
			zap.String("new_digest", m.Digest),
		)
		old.Retire()
	} else {
		r.logger.Info("Module registered",
			zap.String("name", m.Name),
			zap.String("digest", m.Digest),
		)
	}
}

// Get retrieves a module by name.
func (r *Registry) Get(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[name]
	return m, ok
}

// Unregister removes a module and retires it.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	m, ok := r.modules[name]
	if ok {
		delete(r.modules, name)
	}
	r.mu.Unlock()

	if !ok {
		return &NotFoundError{Module: name}
	}

	m.Retire()
	r.logger.Info("Module unregistered", zap.String("name", name))
	return nil
}

// List returns all modules sorted by name.
func (r *Registry) List() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Count returns the number of deployed modules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.modules)
}

// RetireAll drains every module, for shutdown.
func (r *Registry) RetireAll() {
	for _, m := range r.List() {
		m.Retire()
	}
}
