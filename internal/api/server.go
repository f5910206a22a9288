package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/internal/api/handlers"
	"github.com/danghamo/groupwatch/internal/api/middleware"
	"github.com/danghamo/groupwatch/pkg/logger"
	"github.com/danghamo/groupwatch/pkg/sse"
)

// Server is the local live view: an SSE stream of the session view plus
// the actions a map UI needs
type Server struct {
	config      ServerConfig
	httpServer  *http.Server
	logger      *logger.Logger
	router      chi.Router
	controller  handlers.Controller
	viewHandler *handlers.ViewHandler
	broadcaster *sse.SSEBroadcaster
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port              int
	Host              string
	AllowedOrigins    []string
	RequestsPerSecond float64
	Burst             int
	ReadTimeout       time.Duration
	IdleTimeout       time.Duration
}

// NewServer creates the view server
func NewServer(config ServerConfig, controller handlers.Controller, broadcaster *sse.SSEBroadcaster, logger *logger.Logger) *Server {
	apiLogger := logger.WithComponent("api")
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = 20
	}

	s := &Server{
		config:      config,
		logger:      apiLogger,
		router:      chi.NewRouter(),
		controller:  controller,
		viewHandler: handlers.NewViewHandler(apiLogger, controller),
		broadcaster: broadcaster,
	}

	s.setupMiddleware()
	s.setupRoutes()

	// no write timeout: /events is long lived
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:     s.router,
		ReadTimeout: config.ReadTimeout,
		IdleTimeout: config.IdleTimeout,
	}
	return s
}

// setupMiddleware applies middleware to all routes
func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.CORS(s.config.AllowedOrigins),
		middleware.Logging(s.logger),
	))
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheckHandler)
	s.router.Get("/events", s.broadcaster.HandleSSE)
	s.router.Get("/state", s.viewHandler.HandleState)

	// actions are rate limited per client
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.logger, s.config.RequestsPerSecond, s.config.Burst))
		r.Post("/sharing", s.viewHandler.HandleSharing)
		r.Post("/radius", s.viewHandler.HandleRadius)
		r.Post("/interval", s.viewHandler.HandleInterval)
		r.Post("/alerts/dismiss", s.viewHandler.HandleDismiss)
		r.Post("/position/retry", s.viewHandler.HandleRetry)
		r.Delete("/group", s.viewHandler.HandleDelete)
	})
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting view server", zap.String("address", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		s.logger.Error("View server error", zap.Error(err))
		return err
	}
}

// Shutdown closes stream clients, then the HTTP server
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down view server")

	if s.broadcaster != nil {
		s.broadcaster.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("View server stopped")
	return nil
}

// GetAddr returns the server address
func (s *Server) GetAddr() string {
	return s.httpServer.Addr
}

// healthCheckHandler reports stream clients and whether the session is live
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	session := "live"
	if v := s.controller.View(); v == nil || v.Ended {
		session = "ended"
	}
	status := map[string]any{
		"status":  "healthy",
		"session": session,
		"clients": s.broadcaster.GetClientCount(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}
