// Package server exposes the orchestration HTTP API: starting and
// stopping suite runs, progress polling, history and analytics.
package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/rs/zerolog/log"
	"github.com/ziflex/lecho/v3"

	"wxprobe/internal/store"
)

// Server bundles the echo instance with the runner and store behind it.
type Server struct {
	echo   *echo.Echo
	runner *Runner
}

// New builds the HTTP API around an optional store.
func New(st *store.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger := lecho.From(
		log.Logger,
		lecho.WithLevel(gommonlog.INFO),
		lecho.WithField("role", "http_api"),
		lecho.WithTimestamp(),
	)
	e.Logger = logger
	e.Use(lecho.Middleware(lecho.Config{Logger: logger}))
	e.Use(middleware.Recover())

	runner := NewRunner(st)
	NewHandler(runner, st).Register(e)

	return &Server{echo: e, runner: runner}
}

// Echo exposes the underlying instance, mostly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops any running suite and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.runner.Stop()
	return s.echo.Shutdown(ctx)
}
