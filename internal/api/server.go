package api

import (
	"context"
	"errors"
	"fmt"
	"net"

	// #nosec G108 - pprof handlers (conditionally made available via http.DefaultServeMux within router)
	_ "net/http/pprof"

	"github.com/allaboutapps/integresql-client-go/internal/fakepool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Server hosts the fake pooling service. It speaks the IntegreSQL HTTP protocol, backed by an in-memory fakepool.Pool.
type Server struct {
	Config ServerConfig
	Echo   *echo.Echo
	Pool   *fakepool.Pool
}

func NewServer(config ServerConfig) *Server {
	s := &Server{
		Config: config,
		Echo:   nil,
		Pool:   nil,
	}

	return s
}

func DefaultServerFromEnv() *Server {
	return NewServer(DefaultServerConfigFromEnv())
}

func (s *Server) Ready() bool {
	return s.Echo != nil && s.Pool != nil
}

func (s *Server) InitPool(_ context.Context) error {
	s.Pool = fakepool.New(s.Config.Pool)

	log.Debug().
		Str("host", s.Config.Pool.DatabaseConfig.Host).
		Int("port", s.Config.Pool.DatabaseConfig.Port).
		Msg("Fake pool initialized")

	return nil
}

func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	return s.Echo.Start(net.JoinHostPort(s.Config.Address, fmt.Sprintf("%d", s.Config.Port)))
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.Pool != nil {
		if err := s.Pool.ResetAllTracking(ctx); err != nil {
			log.Warn().Err(err).Msg("Received error while resetting pool during shutdown")
		}
	}

	return s.Echo.Shutdown(ctx)
}
