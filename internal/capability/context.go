package capability

import "context"

type sessionKey struct{}

// WithSession attaches a per-request session to the context. Host
// functions retrieve it from the call context wazero propagates into
// every host call, which is how one host module serves many concurrent
// instances without shared state.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session attached to ctx, or nil if the call
// happens outside a supervised request.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
