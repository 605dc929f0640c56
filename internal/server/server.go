package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasmfaas/internal/dispatch"
	"github.com/woxQAQ/wasmfaas/internal/registry"
)

// maxRequestBodyBytes caps what the ingress will read from a trigger
// body.
const maxRequestBodyBytes = 10 << 20

// Server is the HTTP ingress: it normalizes trigger requests into
// dispatch events and exposes the operator surface for deploying,
// undeploying, and inspecting modules.
type Server struct {
	listenAddr string
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	loader     *registry.Loader
	logger     *zap.Logger

	httpServer *http.Server
}

// NewServer creates the ingress over the given registry and dispatcher.
func NewServer(listenAddr string, reg *registry.Registry, d *dispatch.Dispatcher, loader *registry.Loader, logger *zap.Logger) *Server {
	s := &Server{
		listenAddr: listenAddr,
		registry:   reg,
		dispatcher: d,
		loader:     loader,
		logger:     logger.With(zap.String("component", "http-server")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /invoke/{module}", s.handleInvoke)
	mux.HandleFunc("POST /invoke/{module}/{path...}", s.handleInvoke)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/modules", s.handleListModules)
	mux.HandleFunc("POST /v1/modules", s.handleDeploy)
	mux.HandleFunc("DELETE /v1/modules/{name}", s.handleUndeploy)

	s.httpServer = &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.listenAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight
// requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the route table, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
