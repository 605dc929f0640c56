package protocol

// Wire types shared between the trigger ingress, the guest codec, and
// the operator surface. Guest payloads are JSON; []byte fields encode
// as base64 per encoding/json.

// GuestRequest is the trigger event as delivered to a guest's handle
// entry point.
type GuestRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// GuestResponse is what a guest returns from handle (or writes through
// the response_write host call).
type GuestResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// ModuleInfo describes a deployed module on the operator surface.
type ModuleInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Digest       string   `json:"digest"`
	Capabilities []string `json:"capabilities"`
	Busy         int      `json:"busy"`
	Idle         int      `json:"idle"`
	LoadedAt     int64    `json:"loaded_at"`
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes surfaced to callers, mapping the runtime's failure
// taxonomy onto retryable and terminal classes.
const (
	CodeOverloaded       = "overloaded"
	CodePoolExhausted    = "pool_exhausted"
	CodeTimedOut         = "timed_out"
	CodeFault            = "fault"
	CodeCapabilityDenied = "capability_denied"
	CodeModuleNotFound   = "module_not_found"
	CodeHandlerFailed    = "handler_failed"
	CodeInternal         = "internal"
)
