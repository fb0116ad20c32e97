// Package cdn serves a published content directory over HTTP so updaters
// can fetch its manifest and block containers.
package cdn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server hosts a directory produced by publish.Build.
type Server struct {
	echo *echo.Echo
	dir  string
	log  *slog.Logger
}

// New creates a server for dir. The directory must exist.
func New(dir string, log *slog.Logger) (*Server, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("content directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content directory: %s is not a directory", dir)
	}
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, dir: dir, log: log}
	s.setupMiddleware()
	s.registerRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:       true,
		LogURI:          true,
		LogStatus:       true,
		LogLatency:      true,
		LogResponseSize: true,
		LogError:        true,
		HandleError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"bytes", v.ResponseSize,
				"latency", v.Latency,
			}
			if v.Error != nil {
				s.log.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.log.Debug("request", attrs...)
			return nil
		},
	}))
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "contentsync",
		})
	})
	// Manifest and blocks are plain files under dir.
	s.echo.Static("/", s.dir)
}

// Handler exposes the routes for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.echo,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("content server starting", "addr", ln.Addr().String(), "dir", s.dir)
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.log.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("graceful shutdown failed", "error", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("could not stop server: %w", err)
			}
		}
		s.log.Info("shutdown complete")
	}
	return nil
}
