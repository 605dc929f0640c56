package capability

import (
	"fmt"

	"github.com/woxQAQ/wasmfaas/internal/manifest"
)

// DeniedError occurs when a host call is not covered by the module's
// capability manifest.
type DeniedError struct {
	Module     string
	Capability manifest.Capability
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("capability '%s' denied for module '%s'", e.Capability, e.Module)
}
