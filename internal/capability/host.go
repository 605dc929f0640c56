package capability

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasmfaas/internal/wasm"
)

// Host-call status codes returned to guests. Codes, not traps: a
// denied or failed call is terminal for that call only, and the guest
// decides whether to give up on the request.
const (
	StatusOK          uint32 = 0
	StatusDenied      uint32 = 1
	StatusNotFound    uint32 = 2
	StatusInternal    uint32 = 3
	StatusShortBuffer uint32 = 4
)

// ExportHostFunctions registers the host-call ABI on a host module
// builder. Every function resolves the per-request session from the
// call context and passes through the broker before touching a backend.
func (b *Broker) ExportHostFunctions(builder wazero.HostModuleBuilder) {
	builder.NewFunctionBuilder().
		WithFunc(b.kvGet).
		WithParameterNames("key_ptr", "key_len", "dst_ptr", "dst_cap", "written_ptr").
		Export("kv_get")

	builder.NewFunctionBuilder().
		WithFunc(b.kvPut).
		WithParameterNames("key_ptr", "key_len", "val_ptr", "val_len").
		Export("kv_put")

	builder.NewFunctionBuilder().
		WithFunc(b.httpGet).
		WithParameterNames("url_ptr", "url_len", "dst_ptr", "dst_cap", "written_ptr", "status_ptr").
		Export("http_get")

	builder.NewFunctionBuilder().
		WithFunc(b.configGet).
		WithParameterNames("key_ptr", "key_len", "dst_ptr", "dst_cap", "written_ptr").
		Export("config_get")

	builder.NewFunctionBuilder().
		WithFunc(b.nowMS).
		Export("now_ms")

	builder.NewFunctionBuilder().
		WithFunc(b.randomBytes).
		WithParameterNames("dst_ptr", "dst_len").
		Export("random_bytes")

	builder.NewFunctionBuilder().
		WithFunc(b.logMessage).
		WithParameterNames("level", "msg_ptr", "msg_len").
		Export("log")

	builder.NewFunctionBuilder().
		WithFunc(b.responseWrite).
		WithParameterNames("status", "body_ptr", "body_len").
		Export("response_write")
}

// statusFor maps backend errors to guest-visible codes.
func statusFor(err error) uint32 {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return StatusDenied
	}
	return StatusInternal
}

// writeResult copies data into the guest buffer at dstPtr and records
// the byte count at writtenPtr. The required length is always written,
// so a guest seeing StatusShortBuffer can retry with a larger buffer.
func writeResult(mem *wasm.Memory, dstPtr, dstCap, writtenPtr uint32, data []byte) uint32 {
	if !mem.WriteUint32(writtenPtr, uint32(len(data))) {
		return StatusInternal
	}
	if uint32(len(data)) > dstCap {
		return StatusShortBuffer
	}
	if len(data) > 0 && !mem.WriteBytes(dstPtr, data) {
		return StatusInternal
	}
	return StatusOK
}

func (b *Broker) kvGet(ctx context.Context, mod api.Module, keyPtr, keyLen, dstPtr, dstCap, writtenPtr uint32) uint32 {
	s := SessionFrom(ctx)
	if s == nil {
		return StatusInternal
	}

	mem := wasm.NewMemory(mod)
	key, ok := mem.ReadString(keyPtr, keyLen)
	if !ok {
		return StatusInternal
	}

	value, found, err := s.KVGet(ctx, key)
	if err != nil {
		return statusFor(err)
	}
	if !found {
		return StatusNotFound
	}

	return writeResult(mem, dstPtr, dstCap, writtenPtr, []byte(value))
}

func (b *Broker) kvPut(ctx context.Context, mod api.Module, keyPtr, keyLen, valPtr, valLen uint32) uint32 {
	s := SessionFrom(ctx)
	if s == nil {
		return StatusInternal
	}

	mem := wasm.NewMemory(mod)
	key, ok := mem.ReadString(keyPtr, keyLen)
	if !ok {
		return StatusInternal
	}
	value, ok := mem.ReadString(valPtr, valLen)
	if !ok {
		return StatusInternal
	}

	if err := s.KVPut(ctx, key, value); err != nil {
		return statusFor(err)
	}
	return StatusOK
}

func (b *Broker) httpGet(ctx context.Context, mod api.Module, urlPtr, urlLen, dstPtr, dstCap, writtenPtr, statusPtr uint32) uint32 {
	s := SessionFrom(ctx)
	if s == nil {
		return StatusInternal
	}

	mem := wasm.NewMemory(mod)
	url, ok := mem.ReadString(urlPtr, urlLen)
	if !ok {
		return StatusInternal
	}

	httpStatus, body, err := s.HTTPGet(ctx, url)
	if err != nil {
		return statusFor(err)
	}

	if !mem.WriteUint32(statusPtr, uint32(httpStatus)) {
		return StatusInternal
	}
	return writeResult(mem, dstPtr, dstCap, writtenPtr, body)
}

func (b *Broker) configGet(ctx context.Context, mod api.Module, keyPtr, keyLen, dstPtr, dstCap, writtenPtr uint32) uint32 {
	s := SessionFrom(ctx)
	if s == nil {
		return StatusInternal
	}

	mem := wasm.NewMemory(mod)
	key, ok := mem.ReadString(keyPtr, keyLen)
	if !ok {
		return StatusInternal
	}

	value, found, err := s.ConfigGet(key)
	if err != nil {
		return statusFor(err)
	}
	if !found {
		return StatusNotFound
	}

	return writeResult(mem, dstPtr, dstCap, writtenPtr, []byte(value))
}

// nowMS returns the wall clock in milliseconds, or -1 on denial.
func (b *Broker) nowMS(ctx context.Context) int64 {
	s := SessionFrom(ctx)
	if s == nil {
		return -1
	}

	ms, err := s.NowMS()
	if err != nil {
		return -1
	}
	return ms
}

func (b *Broker) randomBytes(ctx context.Context, mod api.Module, dstPtr, dstLen uint32) uint32 {
	s := SessionFrom(ctx)
	if s == nil {
		return StatusInternal
	}

	buf, err := s.RandomBytes(dstLen)
	if err != nil {
		return statusFor(err)
	}

	mem := wasm.NewMemory(mod)
	if dstLen > 0 && !mem.WriteBytes(dstPtr, buf) {
		return StatusInternal
	}
	return StatusOK
}

// logMessage is ungated diagnostics: guests may always log.
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
func (b *Broker) logMessage(ctx context.Context, mod api.Module, level, msgPtr, msgLen uint32) {
	mem := wasm.NewMemory(mod)
	msg, ok := mem.ReadString(msgPtr, msgLen)
	if !ok {
		b.logger.Error("Failed to read guest log message",
			zap.Uint32("ptr", msgPtr),
			zap.Uint32("length", msgLen),
		)
		return
	}

	logger := b.logger
	if s := SessionFrom(ctx); s != nil {
		logger = logger.With(zap.String("request_id", s.RequestID))
	}

	switch level {
	case 0:
		logger.Debug(msg)
	case 1:
		logger.Info(msg)
	case 2:
		logger.Warn(msg)
	case 3:
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
}

// responseWrite captures the guest's response. Foundational: never
// subject to a capability check.
func (b *Broker) responseWrite(ctx context.Context, mod api.Module, status, bodyPtr, bodyLen uint32) uint32 {
	s := SessionFrom(ctx)
	if s == nil {
		return StatusInternal
	}

	mem := wasm.NewMemory(mod)
	body, ok := mem.ReadBytes(bodyPtr, bodyLen)
	if !ok {
		return StatusInternal
	}

	s.WriteResponse(int(status), body)
	return StatusOK
}
