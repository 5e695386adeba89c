package viewserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the view server
type Config struct {
	Addr             string
	AllowedOrigins   []string
	ConnectionConfig ConnectionConfig
	ShutdownTimeout  time.Duration
}

// DefaultConfig returns default view server configuration
func DefaultConfig() Config {
	return Config{
		Addr:             ":8090",
		AllowedOrigins:   []string{"*"},
		ConnectionConfig: DefaultConnectionConfig(),
		ShutdownTimeout:  10 * time.Second,
	}
}

// Server exposes dashboard frames and commands to out-of-process renderers
type Server struct {
	config            Config
	controller        Controller
	connectionManager *ConnectionManager
	handler           http.Handler
}

// NewServer creates a view server for the given controller. stats feeds /health and may be nil.
func NewServer(config Config, controller Controller, stats StatsProvider) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
		},
		AllowedOrigins: config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	connConfig := config.ConnectionConfig
	if connConfig.CheckOrigin == nil {
		connConfig.CheckOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == "" || c.OriginAllowed(r)
		}
	}
	connectionManager := NewConnectionManager(connConfig)

	mux := http.NewServeMux()
	NewWebSocketHandler(connectionManager).RegisterRoutes(mux)
	NewViewHandler(controller).RegisterViewRoutes(mux)
	mux.Handle("/health", NewHealthChecker(stats, connectionManager))

	return &Server{
		config:            config,
		controller:        controller,
		connectionManager: connectionManager,
		handler:           c.Handler(mux),
	}
}

// Handler returns the root HTTP handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves HTTP and relays frames to websocket viewers until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go s.connectionManager.Start(ctx)
	go s.relayFrames(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("view server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("view server shutdown failed")
		return err
	}
	log.Info().Msg("view server stopped")
	return nil
}

func (s *Server) relayFrames(ctx context.Context) {
	frames, unsubscribe := s.controller.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			s.connectionManager.BroadcastFrame(frame)
		}
	}
}
