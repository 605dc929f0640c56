package pool

import "fmt"

// ExhaustedError occurs when a caller's deadline elapses while waiting
// for the module's concurrency ceiling.
type ExhaustedError struct {
	Module  string
	Ceiling int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("instance pool exhausted for module '%s' (ceiling %d)", e.Module, e.Ceiling)
}

// RetiredError occurs when acquiring from a pool that is draining after
// a module replace or undeploy.
type RetiredError struct {
	Module string
}

func (e *RetiredError) Error() string {
	return fmt.Sprintf("instance pool for module '%s' is retired", e.Module)
}
