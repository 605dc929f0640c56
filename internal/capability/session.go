package capability

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/woxQAQ/wasmfaas/internal/manifest"
)

// maxHTTPResponseBytes caps what the http capability will read from an
// upstream body.
const maxHTTPResponseBytes = 1 << 20

// Session carries one request's capability grants. Check results are
// cached for the lifetime of the session and never shared across
// instances or requests.
type Session struct {
	broker    *Broker
	RequestID string

	grants map[manifest.Capability]error
	denied []manifest.Capability

	// Response captured via the foundational response_write call, if
	// the guest used it instead of the return-value path.
	respStatus int
	respBody   []byte
	respSet    bool
}

// NewSession creates a per-request session. Sessions are used by a
// single goroutine at a time (one instance runs one request), so no
// locking is needed.
func (b *Broker) NewSession(requestID string) *Session {
	return &Session{
		broker:    b,
		RequestID: requestID,
		grants:    make(map[manifest.Capability]error, len(b.allowed)),
	}
}

// Check resolves a capability against the manifest allow-set, caching
// the grant for the rest of the request.
func (s *Session) Check(c manifest.Capability) error {
	if err, ok := s.grants[c]; ok {
		return err
	}
	err := s.broker.Check(c)
	s.grants[c] = err
	if err != nil {
		s.denied = append(s.denied, c)
	}
	return err
}

// Denied returns the capabilities this request attempted without a
// grant, in order of first attempt.
func (s *Session) Denied() []manifest.Capability {
	return s.denied
}

// KVGet reads a key from the module's namespace.
func (s *Session) KVGet(ctx context.Context, key string) (string, bool, error) {
	if err := s.Check(manifest.CapabilityKV); err != nil {
		return "", false, err
	}
	return s.broker.kv.Get(ctx, s.broker.moduleName, key)
}

// KVPut writes a key in the module's namespace.
func (s *Session) KVPut(ctx context.Context, key, value string) error {
	if err := s.Check(manifest.CapabilityKV); err != nil {
		return err
	}
	return s.broker.kv.Put(ctx, s.broker.moduleName, key, value)
}

// HTTPGet performs an outbound GET on behalf of the guest.
func (s *Session) HTTPGet(ctx context.Context, url string) (int, []byte, error) {
	if err := s.Check(manifest.CapabilityHTTP); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build outbound request: %w", err)
	}

	resp, err := s.broker.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("outbound request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read outbound response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// ConfigGet reads a value from the module's manifest environment.
func (s *Session) ConfigGet(key string) (string, bool, error) {
	if err := s.Check(manifest.CapabilityConfig); err != nil {
		return "", false, err
	}
	v, ok := s.broker.env[key]
	return v, ok, nil
}

// NowMS returns the current wall clock in milliseconds.
func (s *Session) NowMS() (int64, error) {
	if err := s.Check(manifest.CapabilityClock); err != nil {
		return 0, err
	}
	return time.Now().UnixMilli(), nil
}

// RandomBytes fills a buffer with cryptographic randomness.
func (s *Session) RandomBytes(n uint32) ([]byte, error) {
	if err := s.Check(manifest.CapabilityRandom); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteResponse records the guest's response. Response writing is
// foundational: it is implicitly granted to every module, since a
// module that cannot answer cannot serve any request at all.
func (s *Session) WriteResponse(status int, body []byte) {
	s.respStatus = status
	s.respBody = append([]byte(nil), body...)
	s.respSet = true
}

// Response returns the response captured via WriteResponse, if any.
func (s *Session) Response() (int, []byte, bool) {
	return s.respStatus, s.respBody, s.respSet
}
