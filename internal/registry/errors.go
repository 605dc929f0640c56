package registry

import (
	"fmt"
	"strings"
)

// AlreadyRegisteredError occurs when registering a name twice without
// Replace.
type AlreadyRegisteredError struct {
	Module string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("module '%s' is already registered", e.Module)
}

// NotFoundError occurs when addressing a module that is not deployed.
type NotFoundError struct {
	Module string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found", e.Module)
}

// LoadError occurs when a module directory cannot be turned into a
// deployable module.
type LoadError struct {
	Module string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load module '%s': %v", e.Module, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NoModulesFoundError occurs when discovery finds nothing deployable.
type NoModulesFoundError struct {
	Paths []string
}

func (e *NoModulesFoundError) Error() string {
	return fmt.Sprintf("no modules found in paths: %s", strings.Join(e.Paths, ", "))
}
