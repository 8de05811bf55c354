package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/custodia-labs/oauth-broker/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	baseURL    string
	logger     *slog.Logger

	// Services
	broker       driving.BrokerService
	introspector driving.TokenIntrospector

	// Protected resource served behind the bearer guard (optional)
	resource http.Handler

	// Infrastructure
	store Pinger // key-value store health check (optional)
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Version     string
	BaseURL     string
	CORSOrigins []string
	Logger      *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	broker driving.BrokerService,
	introspector driving.TokenIntrospector,
	resource http.Handler, // can be nil
	store Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:       http.NewServeMux(),
		version:      cfg.Version,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		logger:       logger,
		broker:       broker,
		introspector: introspector,
		resource:     resource,
		store:        store,
	}

	s.setupRoutes()

	// Outermost first
	s.handler = NewRecoveryMiddleware(logger).Handler(
		NewLoggingMiddleware(logger).Handler(
			NewSecurityHeadersMiddleware().Handler(
				NewCORSMiddleware(cfg.CORSOrigins).Handler(s.router))))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /openapi.json", s.handleOpenAPI)

	// Discovery
	s.router.HandleFunc("GET /.well-known/oauth-authorization-server", s.handleMetadata)
	s.router.HandleFunc("GET /.well-known/oauth-protected-resource", s.handleProtectedResourceMetadata)

	// OAuth flow
	s.router.HandleFunc("GET /authorize", s.handleAuthorize)
	s.router.HandleFunc("POST /authorize", s.handleApprove)
	s.router.HandleFunc("GET /callback", s.handleCallback)
	s.router.HandleFunc("POST /token", s.handleToken)
	s.router.HandleFunc("POST /register", s.handleRegister)

	// Protected resource
	if s.resource != nil {
		guard := NewBearerMiddleware(s.introspector, s.baseURL+"/.well-known/oauth-protected-resource", s.logger)
		s.router.Handle("/mcp", guard.Handler(s.resource))
	}
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
