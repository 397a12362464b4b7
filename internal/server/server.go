package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"

	"storyboarder/internal/api"
	"storyboarder/internal/config"
	"storyboarder/internal/logging"
)

// Server owns the HTTP listener and the single-instance lock.
type Server struct {
	bind     string
	token    string
	model    string
	logger   *slog.Logger
	service  *api.StoryboardService
	engine   *gin.Engine
	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	stopMu   sync.Mutex
	baseCtx  context.Context
	listener net.Listener
	server   *http.Server
	running  atomic.Bool
}

// Option customizes a Server.
type Option func(*Server)

// WithModel names the completion model reported by /api/health.
func WithModel(model string) Option {
	return func(s *Server) { s.model = strings.TrimSpace(model) }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New constructs a server around svc using cfg's server and path settings.
func New(cfg *config.Config, svc *api.StoryboardService, opts ...Option) (*Server, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("server requires config and storyboard service")
	}
	s := &Server{
		bind:     strings.TrimSpace(cfg.Server.Bind),
		token:    strings.TrimSpace(cfg.Server.APIToken),
		service:  svc,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "api-server")
	s.engine = s.routes()
	return s, nil
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start acquires the lock and begins serving. Serving stops when ctx ends
// or Stop is called; background generations are bound to ctx.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}
	if s.bind == "" {
		return errors.New("server.bind is empty")
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another storyboarder server is already using %s", s.lockPath)
	}

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Synchronous generation and event streams are long-lived.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.baseCtx = ctx
	s.listener = listener
	s.server = srv
	s.mu.Unlock()
	s.running.Store(true)

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("lock", s.lockPath),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down, waits for background generations, and
// releases the lock.
func (s *Server) Stop() {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	s.service.Wait()
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release server lock", logging.Error(err))
	}
	s.logger.Info("api server stopped")
}

func (s *Server) backgroundContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}
