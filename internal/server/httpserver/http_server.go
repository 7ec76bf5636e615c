// Package httpserver wires the activation endpoint, health and metrics routes
// into one HTTP server.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/clientboot/internal/activation"
	"git.home.luguber.info/inful/clientboot/internal/config"
	derrors "git.home.luguber.info/inful/clientboot/internal/foundation/errors"
	"git.home.luguber.info/inful/clientboot/internal/metrics"
	"git.home.luguber.info/inful/clientboot/internal/server/handlers"
	smw "git.home.luguber.info/inful/clientboot/internal/server/middleware"
)

// Options carries optional collaborators.
type Options struct {
	// Registry enables /metrics when non-nil.
	Registry *prom.Registry
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Server is the reference activation endpoint.
type Server struct {
	cfg          config.ServerConfig
	router       *mux.Router
	httpServer   *http.Server
	listener     net.Listener
	clients      *handlers.Registry
	errorAdapter *derrors.HTTPErrorAdapter
	logger       *slog.Logger
	serveErr     chan error
}

// New builds the server and its routes. Nothing listens until Start.
func New(cfg config.ServerConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	s := &Server{
		cfg:          cfg,
		clients:      handlers.NewRegistry(cfg.TokenTTL, nil),
		errorAdapter: derrors.NewHTTPErrorAdapter(logger),
		logger:       logger,
	}

	clientHandlers := handlers.NewClientHandlers(cfg, s.clients, recorder, logger)
	monitoring := handlers.NewMonitoringHandlers(s.clients, s.errorAdapter)

	r := mux.NewRouter()
	r.HandleFunc(activation.InitPath, clientHandlers.HandleInit).Methods(http.MethodPost)
	r.HandleFunc("/health", monitoring.HandleHealthCheck).Methods(http.MethodGet)
	if opts.Registry != nil {
		r.Handle("/metrics", metrics.HTTPHandler(opts.Registry)).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(s.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)
	r.Use(mux.MiddlewareFunc(smw.Chain(logger, s.errorAdapter)))
	s.router = r

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Clients returns the client registry.
func (s *Server) Clients() *handlers.Registry { return s.clients }

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return derrors.RuntimeError("failed to bind activation server").
			WithCause(err).
			WithContext("listen_addr", s.cfg.ListenAddr).
			Build()
	}
	s.listener = ln
	s.serveErr = make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.serveErr <- err
		close(s.serveErr)
	}()
	s.logger.Info("Activation server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.ListenAddr
	}
	return s.listener.Addr().String()
}

// URL returns the base URL clients should use to reach the server.
func (s *Server) URL() string {
	addr := s.Addr()
	host, port, err := net.SplitHostPort(addr)
	if err == nil && (host == "" || host == "::" || host == "0.0.0.0") {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	return "http://" + addr
}

// Stop gracefully shuts the server down and returns any serve error.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("activation server shutdown: %w", err)
	}
	if s.serveErr != nil {
		if err := <-s.serveErr; err != nil {
			return fmt.Errorf("activation server: %w", err)
		}
	}
	return nil
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.errorAdapter.WriteErrorResponse(w, r, derrors.NewError(derrors.CategoryNotFound, "route not found").
		WithSeverity(derrors.SeverityInfo).
		WithContext("path", r.URL.Path).
		Build())
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	w.WriteHeader(http.StatusMethodNotAllowed)
}
