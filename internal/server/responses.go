package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/woxQAQ/wasmfaas/internal/capability"
	"github.com/woxQAQ/wasmfaas/internal/dispatch"
	"github.com/woxQAQ/wasmfaas/internal/pool"
	"github.com/woxQAQ/wasmfaas/internal/registry"
	"github.com/woxQAQ/wasmfaas/internal/wasm"
	"github.com/woxQAQ/wasmfaas/pkg/protocol"
)

// classify maps the dispatch failure taxonomy onto HTTP statuses and
// wire error codes. Retryable conditions get 429/503, deadline blowout
// gets 504, and guest-side failures get 5xx codes the caller can tell
// apart from runtime trouble.
func classify(err error) (int, string) {
	var (
		notFound   *registry.NotFoundError
		overloaded *dispatch.OverloadedError
		exhausted  *pool.ExhaustedError
		timedOut   *dispatch.TimeoutError
		denied     *capability.DeniedError
		handler    *dispatch.HandlerError
		fault      *wasm.GuestFaultError
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, protocol.CodeModuleNotFound
	case errors.As(err, &overloaded):
		return http.StatusTooManyRequests, protocol.CodeOverloaded
	case errors.As(err, &exhausted):
		return http.StatusServiceUnavailable, protocol.CodePoolExhausted
	case errors.As(err, &timedOut):
		return http.StatusGatewayTimeout, protocol.CodeTimedOut
	case errors.As(err, &denied):
		return http.StatusInternalServerError, protocol.CodeCapabilityDenied
	case errors.As(err, &handler):
		return http.StatusBadGateway, protocol.CodeHandlerFailed
	case errors.As(err, &fault):
		// Traps and memory violations inside the guest.
		return http.StatusBadGateway, protocol.CodeFault
	default:
		return http.StatusInternalServerError, protocol.CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, &protocol.ErrorResponse{Error: msg, Code: code})
}
