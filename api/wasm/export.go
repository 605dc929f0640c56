//go:build wasm

package wasm

// This file defines the Wasm export interface for guest modules.
// Guests must implement these functions using //go:wasmexport
//
// NOTE: uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model. All Wasm memory addresses are represented as 32-bit integers
// (addresses 0 to 4GB). This ensures compatibility with Wasm's memory architecture.
// See: https://github.com/golang/go/issues/59156

// Exported functions that guest modules must implement:
//
// //go:wasmexport alloc
// func alloc(size uint32) uint32
//
// alloc reserves size bytes of guest memory and returns the offset. The
// runtime calls it once per request to place the serialized request
// before invoking handle. The returned region must stay valid until
// handle returns.
//
// //go:wasmexport handle
// func handle(ptr, length uint32) uint64
//
// handle receives the serialized request at [ptr, ptr+length) and
// returns its serialized response packed as (offset << 32) | length.
// Returning 0 declines the return-value path; the runtime then looks
// for a response recorded through the response_write host call.
