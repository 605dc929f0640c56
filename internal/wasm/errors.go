package wasm

import (
	"errors"
	"fmt"
)

var errNotCompiled = errors.New("module not compiled")

// CompilationError occurs when Wasm module compilation fails.
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// MissingExportError occurs when a binary lacks a required entry point.
type MissingExportError struct {
	ModuleName string
	Export     string
}

func (e *MissingExportError) Error() string {
	return fmt.Sprintf("module '%s' does not export required function '%s'", e.ModuleName, e.Export)
}

// InstantiationError occurs when module instantiation fails.
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// HostBindError occurs when the host-call module cannot be instantiated.
type HostBindError struct {
	ModuleName string
	Err        error
}

func (e *HostBindError) Error() string {
	return fmt.Sprintf("failed to bind host functions for module '%s': %v", e.ModuleName, e.Err)
}

func (e *HostBindError) Unwrap() error {
	return e.Err
}

// MemoryAccessError occurs when guest memory operations fail.
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("guest memory access failed (op=%s, addr=%d, len=%d)",
		e.Operation, e.Address, e.Length)
}

// GuestFaultError occurs when guest execution traps or is terminated.
type GuestFaultError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *GuestFaultError) Error() string {
	return fmt.Sprintf("guest fault in module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *GuestFaultError) Unwrap() error {
	return e.Err
}
