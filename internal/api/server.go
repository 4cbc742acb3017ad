package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/netdash/netdash-core/internal/infrastructure/config"
	"github.com/netdash/netdash-core/internal/infrastructure/logging"
	"github.com/netdash/netdash-core/internal/netscan"
	"github.com/netdash/netdash-core/internal/registry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Engine is the exposure coordination surface the API drives.
type Engine interface {
	Level() int
	SetLevel(ctx context.Context, level int) int
	HandleRotate(ctx context.Context, direction string) (int, bool)
	HandlePress(ctx context.Context) int
	Recompute(ctx context.Context) int
}

// Store is the slice of the device registry the API reads and writes.
type Store interface {
	SetAttributes(mac string, attrs registry.Attributes) (registry.Record, error)
	Enrich(live []netscan.Client) []registry.Client
}

// Scanner produces the current live client list.
type Scanner interface {
	List(ctx context.Context) []netscan.Client
}

// Access applies WAN enforcement for a device status.
type Access interface {
	Enforce(ctx context.Context, mac string, status registry.Status)
}

// StatusSink receives status writes for external publication. Optional.
type StatusSink interface {
	DeviceStatusChanged(mac string, status registry.Status)
}

// PlugController publishes smart plug commands. Optional.
type PlugController interface {
	PlugToggle() error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Engine  Engine
	Store   Store
	Scanner Scanner
	Access  Access         // optional; nil disables WAN enforcement on PATCH
	Sink    StatusSink     // optional
	Plug    PlugController // optional; nil returns 503 on plug routes

	// Roles maps input device IDs to named roles, resolved once here
	// rather than compared per event.
	Roles map[string]string

	// ExternalHub lets the caller share one hub between the engine and
	// the server. If nil the server creates its own.
	ExternalHub *Hub

	Version string
}

// Server is the hub's HTTP API and WebSocket server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	engine  Engine
	store   Store
	scanner Scanner
	access  Access
	sink    StatusSink
	plug    PlugController
	roles   map[string]string
	version string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates an API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("exposure engine is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		engine:  deps.Engine,
		store:   deps.Store,
		scanner: deps.Scanner,
		access:  deps.Access,
		sink:    deps.Sink,
		plug:    deps.Plug,
		roles:   deps.Roles,
		version: deps.Version,
		hub:     deps.ExternalHub,
	}
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the
// HTTP listener in a background goroutine. Stop with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server. In-flight requests get up
// to gracefulShutdownTimeout to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Hub returns the server's WebSocket hub for use as the engine's
// broadcaster.
func (s *Server) Hub() *Hub {
	return s.hub
}
