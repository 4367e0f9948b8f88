package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	apicontrollers "github.com/drujensen/aibrowser/internal/api/controllers"
	"github.com/drujensen/aibrowser/internal/api/websocket"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server exposes the session service over HTTP and relays events over a websocket.
type Server struct {
	echo   *echo.Echo
	hub    *websocket.EventHub
	logger *zap.Logger
}

func NewServer(sessions apicontrollers.Sessions, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("Request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID))
			return nil
		},
	}))

	hub := websocket.NewEventHub(logger)
	e.GET("/ws/events", hub.Handle)

	api := e.Group("/api")
	apicontrollers.NewSessionController(logger, sessions).RegisterRoutes(api)

	return &Server{echo: e, hub: hub, logger: logger}
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.hub.Close()
	return s.echo.Shutdown(shutdownCtx)
}
