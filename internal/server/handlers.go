package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasmfaas/internal/dispatch"
	"github.com/woxQAQ/wasmfaas/internal/registry"
	"github.com/woxQAQ/wasmfaas/pkg/protocol"
)

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, protocol.CodeInternal, "failed to read request body")
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	ev := &dispatch.TriggerEvent{
		ID:      uuid.NewString(),
		Module:  r.PathValue("module"),
		Method:  r.Method,
		Path:    "/" + r.PathValue("path"),
		Headers: headers,
		Body:    body,
		Arrived: time.Now(),
	}

	w.Header().Set("X-Request-Id", ev.ID)

	res := s.dispatcher.Dispatch(r.Context(), ev)
	if res.State != dispatch.StateCompleted {
		status, code := classify(res.Err)
		writeError(w, status, code, res.Err.Error())
		return
	}

	for k, v := range res.Response.Headers {
		w.Header().Set(k, v)
	}
	status := res.Response.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(res.Response.Body); err != nil {
		s.logger.Warn("Failed to write response body",
			zap.String("request_id", ev.ID),
			zap.Error(err),
		)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	modules := s.registry.List()
	infos := make([]protocol.ModuleInfo, 0, len(modules))
	for _, m := range modules {
		infos = append(infos, moduleInfo(m))
	}
	writeJSON(w, http.StatusOK, infos)
}

// deployRequest asks the server to load a module from a directory on
// its filesystem.
type deployRequest struct {
	Dir string `json:"dir"`
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes)).Decode(&req); err != nil || req.Dir == "" {
		writeError(w, http.StatusBadRequest, protocol.CodeInternal, "body must be JSON with a non-empty 'dir'")
		return
	}

	mod, err := s.loader.Load(r.Context(), req.Dir)
	if err != nil {
		// Loading failures are the caller's problem: a bad manifest, a
		// missing artifact, or an invalid binary.
		writeError(w, http.StatusBadRequest, protocol.CodeInternal, err.Error())
		return
	}

	// Deploy-or-replace. A previous version drains instead of dying.
	s.registry.Replace(mod)
	writeJSON(w, http.StatusCreated, moduleInfo(mod))
}

func (s *Server) handleUndeploy(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.registry.Unregister(name); err != nil {
		writeError(w, http.StatusNotFound, protocol.CodeModuleNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func moduleInfo(m *registry.Module) protocol.ModuleInfo {
	caps := m.Broker.Allowed()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}

	busy, idle := m.Pool.Stats()
	return protocol.ModuleInfo{
		Name:         m.Name,
		Version:      m.Manifest.Version,
		Digest:       m.Digest,
		Capabilities: names,
		Busy:         busy,
		Idle:         idle,
		LoadedAt:     m.LoadedAt.UnixMilli(),
	}
}
