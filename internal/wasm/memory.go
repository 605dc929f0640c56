package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// Memory provides safe, bounds-checked access to a guest's linear
// memory. Guest memory is isolated from Go's heap; every read copies
// and every write is validated by wazero, so a misbehaving guest can
// hand the host a bad pointer but never reach outside its own arena.
type Memory struct {
	mem api.Memory
}

// NewMemory creates a memory helper for a module instance.
func NewMemory(module api.Module) *Memory {
	return &Memory{mem: module.Memory()}
}

// ReadBytes copies length bytes from guest memory at ptr.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, true
}

// ReadString copies a length-delimited UTF-8 string from guest memory.
func (m *Memory) ReadString(ptr uint32, length uint32) (string, bool) {
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return "", false
	}
	return string(buf), true
}

// WriteBytes writes data into a guest-provided buffer at ptr.
// The guest owns the buffer; the host never allocates guest memory
// outside the Invoke path.
func (m *Memory) WriteBytes(ptr uint32, data []byte) bool {
	return m.mem.Write(ptr, data)
}

// WriteUint32 writes a little-endian u32 at ptr.
func (m *Memory) WriteUint32(ptr uint32, v uint32) bool {
	return m.mem.WriteUint32Le(ptr, v)
}
