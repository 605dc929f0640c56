package manifest

import "fmt"

// NotFoundError occurs when manifest.yaml is missing from a module directory.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("manifest not found at '%s': %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ParseError occurs when manifest.yaml is not valid YAML.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse manifest '%s': %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError occurs when a manifest field is missing, malformed, or
// declares a resource ceiling above the system maximum.
type ValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid manifest '%s': field '%s': %s", e.Path, e.Field, e.Message)
}

// WasmNotFoundError occurs when the declared Wasm artifact is missing.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("wasm file '%s' declared in '%s' does not exist", e.WasmFile, e.ManifestPath)
}
