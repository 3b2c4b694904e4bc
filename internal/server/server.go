package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wheelroom/api/internal/broadcast"
	"github.com/wheelroom/api/internal/chat"
	"github.com/wheelroom/api/internal/history"
	"github.com/wheelroom/api/internal/identity"
	"github.com/wheelroom/api/internal/room"
	"github.com/wheelroom/api/internal/spin"
	"github.com/wheelroom/api/internal/wheel"
)

// Deps are the services the HTTP layer adapts.
type Deps struct {
	Logger   *slog.Logger
	Rooms    *room.Registry
	Wheels   *wheel.Store
	History  *history.Store
	Chat     *chat.Service
	Spins    *spin.Coordinator
	Identity *identity.Issuer

	// Broker holds this instance's stream subscribers. Publisher is where
	// handlers send events; it is the Broker itself unless events are
	// relayed through Redis.
	Broker    *broadcast.Broker
	Publisher broadcast.Publisher

	SpinLimiter *Limiter

	// closing is closed when Shutdown starts. Open streams end on it.
	closing <-chan struct{}
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// New builds the server. mount registers extra routes such as /healthz.
func New(addr string, deps Deps, mount func(r chi.Router)) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger:  deps.Logger,
		closing: make(chan struct{}),
	}
	s.srv.RegisterOnShutdown(func() {
		s.closeOnce.Do(func() { close(s.closing) })
	})
	deps.closing = s.closing

	if mount != nil {
		mount(r)
	}
	addRoutes(r, deps)

	return s
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, ends open event streams and waits
// for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			reqLogger := logger.With("request_id", middleware.GetReqID(r.Context()))

			defer func() {
				reqLogger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), reqLogger)))
		})
	}
}
