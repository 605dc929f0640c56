//go:build !wasm

package wasm

// This file documents the host import surface the runtime provides to
// guest modules. Every call is mediated by the capability broker: an
// import backed by a capability the module's manifest does not declare
// returns StatusDenied (or -1 for now_ms) instead of executing.
//
// Pointers and lengths are guest linear-memory offsets. Calls that
// produce variable-length output take a guest-owned destination buffer
// (dst_ptr, dst_cap) and report the byte count through written_ptr;
// the host never allocates guest memory on its own.
//
// Imports, all from the "wasmfaas" namespace:
//
//	kv_get(key_ptr, key_len, dst_ptr, dst_cap, written_ptr uint32) uint32
//	    Reads a key from the module's namespace. Requires kv.
//
//	kv_put(key_ptr, key_len, val_ptr, val_len uint32) uint32
//	    Writes a key in the module's namespace. Requires kv.
//
//	http_get(url_ptr, url_len, dst_ptr, dst_cap, written_ptr, status_ptr uint32) uint32
//	    Outbound GET; the upstream HTTP status lands at status_ptr.
//	    Requires http.
//
//	config_get(key_ptr, key_len, dst_ptr, dst_cap, written_ptr uint32) uint32
//	    Reads a value from the module's manifest environment. Requires
//	    config.
//
//	now_ms() int64
//	    Wall-clock milliseconds, or -1 without the clock capability.
//
//	random_bytes(dst_ptr, dst_len uint32) uint32
//	    Fills dst with cryptographic randomness. Requires random.
//
//	log(level, msg_ptr, msg_len uint32)
//	    Emits a guest log line (0 debug, 1 info, 2 warn, 3 error).
//	    Always available.
//
//	response_write(status, body_ptr, body_len uint32) uint32
//	    Records the request's response. Always available: a module that
//	    cannot answer cannot serve requests at all.

// HostModule is the import namespace guest modules link host calls
// from.
const HostModule = "wasmfaas"

// Status codes returned by host calls that can fail. A guest seeing
// StatusShortBuffer should re-call with a buffer of at least the
// length the host wrote through written_ptr.
const (
	StatusOK          uint32 = 0
	StatusDenied      uint32 = 1
	StatusNotFound    uint32 = 2
	StatusInternal    uint32 = 3
	StatusShortBuffer uint32 = 4
)
