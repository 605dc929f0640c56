package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Capability names a host operation class a module may invoke.
type Capability string

const (
	CapabilityKV     Capability = "kv"
	CapabilityHTTP   Capability = "http"
	CapabilityConfig Capability = "config"
	CapabilityClock  Capability = "clock"
	CapabilityRandom Capability = "random"
)

// Capabilities enumerates every grantable capability. The broker's
// allow-set is resolved against this enumeration at load time.
func Capabilities() []Capability {
	return []Capability{
		CapabilityKV,
		CapabilityHTTP,
		CapabilityConfig,
		CapabilityClock,
		CapabilityRandom,
	}
}

func validCapability(c Capability) bool {
	for _, known := range Capabilities() {
		if c == known {
			return true
		}
	}
	return false
}

// Manifest represents the module manifest.yaml structure.
type Manifest struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Wasm         WasmConfig        `yaml:"wasm"`
	Capabilities []Capability      `yaml:"capabilities"`
	Limits       ResourceLimits    `yaml:"limits"`
	Env          map[string]string `yaml:"env"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds the module artifact location.
type WasmConfig struct {
	File string `yaml:"file"`
}

// ResourceLimits holds the resource ceilings a module declares for itself.
// Each is validated against the system maxima before the module is accepted.
type ResourceLimits struct {
	MemoryPages   uint32 `yaml:"memory_pages"`
	TimeCeilingMS int    `yaml:"time_ceiling_ms"`
	MaxInstances  int    `yaml:"max_instances"`
}

// Maxima holds the system-wide ceilings declared limits may not exceed.
type Maxima struct {
	MemoryPages   uint32
	TimeCeilingMS int
	MaxInstances  int
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string, maxima Maxima) (*Manifest, error) {
	manifestPath := filepath.Join(dir, "manifest.yaml")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &NotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	// Validate manifest
	if err := m.Validate(maxima); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields and declared ceilings against maxima.
func (m *Manifest) Validate(maxima Maxima) error {
	// Check required fields
	if m.Name == "" {
		return &ValidationError{
			Path:    m.Path(),
			Field:   "name",
			Message: "name is required",
		}
	}

	if m.Version == "" {
		return &ValidationError{
			Path:    m.Path(),
			Field:   "version",
			Message: "version is required",
		}
	}

	if m.Wasm.File == "" {
		return &ValidationError{
			Path:    m.Path(),
			Field:   "wasm.file",
			Message: "wasm.file is required",
		}
	}

	// Validate capabilities against the known enumeration. An empty
	// list is legal: such a module can only compute and write a response.
	seen := make(map[Capability]bool, len(m.Capabilities))
	for _, c := range m.Capabilities {
		if !validCapability(c) {
			return &ValidationError{
				Path:    m.Path(),
				Field:   "capabilities",
				Message: fmt.Sprintf("unknown capability: %s (must be one of: kv, http, config, clock, random)", c),
			}
		}
		if seen[c] {
			return &ValidationError{
				Path:    m.Path(),
				Field:   "capabilities",
				Message: fmt.Sprintf("duplicate capability: %s", c),
			}
		}
		seen[c] = true
	}

	// Validate resource ceilings
	if m.Limits.MemoryPages == 0 {
		return &ValidationError{
			Path:    m.Path(),
			Field:   "limits.memory_pages",
			Message: "limits.memory_pages is required",
		}
	}
	if maxima.MemoryPages > 0 && m.Limits.MemoryPages > maxima.MemoryPages {
		return &ValidationError{
			Path:    m.Path(),
			Field:   "limits.memory_pages",
			Message: fmt.Sprintf("declared %d pages exceeds system maximum %d", m.Limits.MemoryPages, maxima.MemoryPages),
		}
	}

	if m.Limits.TimeCeilingMS < 0 {
		return &ValidationError{
			Path:    m.Path(),
			Field:   "limits.time_ceiling_ms",
			Message: "limits.time_ceiling_ms must not be negative",
		}
	}
	if maxima.TimeCeilingMS > 0 && m.Limits.TimeCeilingMS > maxima.TimeCeilingMS {
		return &ValidationError{
			Path:    m.Path(),
			Field:   "limits.time_ceiling_ms",
			Message: fmt.Sprintf("declared %dms exceeds system maximum %dms", m.Limits.TimeCeilingMS, maxima.TimeCeilingMS),
		}
	}

	if m.Limits.MaxInstances <= 0 {
		return &ValidationError{
			Path:    m.Path(),
			Field:   "limits.max_instances",
			Message: "limits.max_instances must be positive",
		}
	}
	if maxima.MaxInstances > 0 && m.Limits.MaxInstances > maxima.MaxInstances {
		return &ValidationError{
			Path:    m.Path(),
			Field:   "limits.max_instances",
			Message: fmt.Sprintf("declared %d instances exceeds system maximum %d", m.Limits.MaxInstances, maxima.MaxInstances),
		}
	}

	// Validate Wasm file exists
	wasmPath := m.WasmPath()
	if _, err := os.Stat(wasmPath); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

// Allows reports whether the manifest declares the given capability.
func (m *Manifest) Allows(c Capability) bool {
	for _, declared := range m.Capabilities {
		if declared == c {
			return true
		}
	}
	return false
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, "manifest.yaml")
}

// WasmPath returns the absolute path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
