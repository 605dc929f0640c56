package capability

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasmfaas/internal/manifest"
)

// Broker mediates every host call an instance makes against the
// module's declared manifest. The allow-set is resolved once at load
// time; Check is a map lookup with no policy evaluation on the hot path.
type Broker struct {
	moduleName string
	allowed    map[manifest.Capability]struct{}
	env        map[string]string
	kv         KVStore
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBroker resolves a manifest into a flat allow-set.
func NewBroker(m *manifest.Manifest, kv KVStore, logger *zap.Logger) *Broker {
	allowed := make(map[manifest.Capability]struct{}, len(m.Capabilities))
	for _, c := range m.Capabilities {
		allowed[c] = struct{}{}
	}

	return &Broker{
		moduleName: m.Name,
		allowed:    allowed,
		env:        m.Env,
		kv:         kv,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With(zap.String("component", "capability-broker"), zap.String("module", m.Name)),
	}
}

// Check reports whether the module may invoke the given capability.
func (b *Broker) Check(c manifest.Capability) error {
	if _, ok := b.allowed[c]; !ok {
		return &DeniedError{
			Module:     b.moduleName,
			Capability: c,
		}
	}
	return nil
}

// Allowed returns the resolved allow-set, for inspection.
func (b *Broker) Allowed() []manifest.Capability {
	out := make([]manifest.Capability, 0, len(b.allowed))
	for _, c := range manifest.Capabilities() {
		if _, ok := b.allowed[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
