// Package httpserver is the operator HTTP surface: health, Prometheus
// metrics, a status snapshot and manual sync and weather triggers.
package httpserver

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/birdweather-sync/internal/app"
	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/weather"
)

const (
	readHeaderTimeout = 10 * time.Second
	apiPrefix         = "/api/v1"
)

// Backend runs and reports on the sync and weather domains. Overlapping
// runs must fail with an error matching scheduler.IsBusy.
type Backend interface {
	RunSync(ctx context.Context) (detection.Stats, error)
	RunWeather(ctx context.Context) (weather.Status, error)
	Status(ctx context.Context) (*app.StatusReport, error)
}

// Server encapsulates the Echo server.
type Server struct {
	Echo    *echo.Echo
	backend Backend
	log     logger.Logger

	listener net.Listener
	serveErr chan error
}

// New creates a Server and registers its routes. metrics may be nil to
// disable /metrics.
func New(backend Backend, metrics http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &Server{
		Echo:    echo.New(),
		backend: backend,
		log:     log.Module("httpserver"),
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Logger = newEchoLogger(s.log.Module("echo"))
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()
	s.Echo.Server.ReadHeaderTimeout = readHeaderTimeout

	s.Echo.Use(middleware.Recover())
	s.setupRequestLogger()
	s.initRoutes(metrics)
	return s
}

func (s *Server) initRoutes(metrics http.Handler) {
	s.Echo.GET("/healthz", s.handleHealth)
	if metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(metrics))
	}

	api := s.Echo.Group(apiPrefix)
	api.GET("/status", s.handleStatus)
	api.POST("/sync", s.handleSync)
	api.POST("/weather", s.handleWeather)
}

func (s *Server) setupRequestLogger() {
	httpLog := s.log.Module("request")
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogError:     true,
		HandleError:  true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}

			switch {
			case v.Status >= http.StatusInternalServerError:
				httpLog.Error("request failed", fields...)
			case v.Status >= http.StatusBadRequest:
				httpLog.Warn("request rejected", fields...)
			default:
				httpLog.Debug("request served", fields...)
			}
			return nil
		},
	}))
}

// Start listens on addr and serves in the background. The listen error,
// if any, is returned synchronously.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.New(err).
			Component("httpserver").
			Category(errors.CategoryConfiguration).
			Context("listen", addr).
			Build()
	}
	s.listener = ln
	s.Echo.Listener = ln
	s.serveErr = make(chan error, 1)

	go func() {
		err := s.Echo.Start("")
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logger.Error(err))
			s.serveErr <- err
		}
		close(s.serveErr)
	}()

	s.log.Info("http server started", logger.String("listen", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones until
// ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.serveErr == nil {
		return nil
	}
	if err := s.Echo.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.serveErr
}
