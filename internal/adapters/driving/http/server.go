package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helion-labs/calconnect-core/internal/core/ports/driven"
	"github.com/helion-labs/calconnect-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	flowService   driving.OAuthFlowService
	statusService driving.StatusService
	configService driving.ConfigService

	// Infrastructure
	authAdapter driven.AuthAdapter
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)

	actions map[string]calendarAction
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	flowService driving.OAuthFlowService,
	statusService driving.StatusService,
	configService driving.ConfigService,
	authAdapter driven.AuthAdapter,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:        http.NewServeMux(),
		version:       cfg.Version,
		flowService:   flowService,
		statusService: statusService,
		configService: configService,
		authAdapter:   authAdapter,
		db:            db,
		redisClient:   redisClient,
	}

	handler := NewRecoveryMiddleware().Handler(
		NewLoggingMiddleware().Handler(
			NewCORSMiddleware(cfg.AllowedOrigins).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Single action-routed integration endpoint. The CRM frontend calls it
	// with ?action=..., and the provider redirect lands on action=callback.
	// Method and auth requirements are per action, so dispatch happens in
	// the handler rather than in ServeMux patterns.
	s.actions = map[string]calendarAction{
		"connect":         {method: http.MethodPost, handler: s.handleConnect},
		"callback":        {method: http.MethodGet, public: true, handler: s.handleCallback},
		"callback-proxy":  {method: http.MethodPost, public: true, handler: s.handleCallbackProxy},
		"disconnect":      {method: http.MethodPost, handler: s.handleDisconnect},
		"test":            {method: http.MethodPost, handler: s.handleTest},
		"select-calendar": {method: http.MethodPost, handler: s.handleSelectCalendar},
		"status":          {method: http.MethodGet, handler: s.handleStatus},
		"save-config":     {method: http.MethodPost, handler: s.handleSaveConfig},
		"get-config":      {method: http.MethodGet, handler: s.handleGetConfig},
		"audit-log":       {method: http.MethodGet, handler: s.handleAuditLog},
		"init":            {method: http.MethodGet, handler: s.handleInit},
	}
	s.router.HandleFunc("/api/v1/integrations/calendar", s.handleCalendarAction)
}

// calendarAction describes one action behind the integration endpoint.
// Public actions are authenticated by the signed OAuth state they carry,
// not by a bearer token.
type calendarAction struct {
	method  string
	public  bool
	handler http.HandlerFunc
}

func (s *Server) handleCalendarAction(w http.ResponseWriter, r *http.Request) {
	action, ok := s.actions[r.URL.Query().Get("action")]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	if r.Method != action.method {
		w.Header().Set("Allow", action.method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if action.public {
		action.handler(w, r)
		return
	}

	NewAuthMiddleware(s.authAdapter).Authenticate(action.handler).ServeHTTP(w, r)
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
