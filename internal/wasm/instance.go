package wasm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Instance is one sandboxed execution context of a compiled module.
// It owns an isolated linear memory; nothing is shared with other
// instances, including instances of the same module.
type Instance struct {
	// wazero module instance.
	module api.Module

	id         string
	moduleName string
	createdAt  time.Time

	// Guest entry points (cached at instantiation).
	handleFn api.Function
	allocFn  api.Function

	logger *zap.Logger
}

// Instantiate creates a fresh instance of the compiled module.
// No start functions run: guest code executes only when the
// supervisor invokes the handle entry point.
func (e *Engine) Instantiate(ctx context.Context) (*Instance, error) {
	if e.compiled == nil {
		return nil, &InstantiationError{
			ModuleName: e.cfg.ModuleName,
			Err:        errNotCompiled,
		}
	}

	instanceID := uuid.NewString()

	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions()

	module, err := e.runtime.InstantiateModule(ctx, e.compiled, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: e.cfg.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	handleFn := module.ExportedFunction(GuestHandle)
	allocFn := module.ExportedFunction(GuestAlloc)
	if handleFn == nil || allocFn == nil {
		// Compile() already checked the export list, so this only
		// happens if the binary was swapped underneath us.
		_ = module.Close(ctx)
		return nil, &MissingExportError{
			ModuleName: e.cfg.ModuleName,
			Export:     GuestHandle,
		}
	}

	e.logger.Debug("Instance created", zap.String("instance_id", instanceID))

	return &Instance{
		module:     module,
		id:         instanceID,
		moduleName: e.cfg.ModuleName,
		createdAt:  time.Now(),
		handleFn:   handleFn,
		allocFn:    allocFn,
		logger:     e.logger.With(zap.String("instance_id", instanceID)),
	}, nil
}

// ID returns the instance identifier.
func (i *Instance) ID() string {
	return i.id
}

// ModuleName returns the name of the module this instance runs.
func (i *Instance) ModuleName() string {
	return i.moduleName
}

// CreatedAt returns the instantiation time.
func (i *Instance) CreatedAt() time.Time {
	return i.createdAt
}

// Invoke runs one request payload through the guest handle function.
// The payload is copied into guest memory via the guest allocator, and
// the response is copied back out before returning, so the caller never
// holds references into instance memory.
//
// A nil, nil return means the guest declined the request (returned a
// null response); the caller decides how to classify it.
func (i *Instance) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	ptr := uint32(0)
	if len(payload) > 0 {
		res, err := i.allocFn.Call(ctx, uint64(len(payload)))
		if err != nil {
			return nil, &GuestFaultError{
				ModuleName: i.moduleName,
				InstanceID: i.id,
				Err:        err,
			}
		}
		ptr = uint32(res[0])

		if !i.module.Memory().Write(ptr, payload) {
			return nil, &MemoryAccessError{
				Operation: "write",
				Address:   ptr,
				Length:    uint32(len(payload)),
			}
		}
	}

	out, err := i.handleFn.Call(ctx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		return nil, &GuestFaultError{
			ModuleName: i.moduleName,
			InstanceID: i.id,
			Err:        err,
		}
	}

	packed := out[0]
	if packed == 0 {
		return nil, nil
	}

	respPtr := uint32(packed >> 32)
	respLen := uint32(packed)

	buf, ok := i.module.Memory().Read(respPtr, respLen)
	if !ok {
		return nil, &MemoryAccessError{
			Operation: "read",
			Address:   respPtr,
			Length:    respLen,
		}
	}

	// Copy out: buf aliases guest memory and the instance may be
	// reused or closed after this call.
	resp := make([]byte, len(buf))
	copy(resp, buf)

	return resp, nil
}

// Close destroys the instance and releases its memory.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
