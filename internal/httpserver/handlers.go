package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdweather-sync/internal/detection"
	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/logger"
	"github.com/tphakala/birdweather-sync/internal/scheduler"
	"github.com/tphakala/birdweather-sync/internal/weather"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// SyncResponse is returned by POST /api/v1/sync. Stats are included on
// failure too, describing the partial run.
type SyncResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Stats   detection.Stats `json:"stats"`
}

// WeatherResponse is returned by POST /api/v1/weather.
type WeatherResponse struct {
	weather.Status
	Error string `json:"error,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	report, err := s.backend.Status(c.Request().Context())
	if err != nil {
		return s.handleError(c, err, "Failed to load status", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleSync(c echo.Context) error {
	stats, err := s.backend.RunSync(c.Request().Context())
	if scheduler.IsBusy(err) {
		return s.handleError(c, err, "Detection sync already in progress", http.StatusConflict)
	}
	if err != nil {
		s.log.Warn("manual sync failed", logger.Error(err))
		return c.JSON(statusFor(err), SyncResponse{Error: err.Error(), Stats: stats})
	}
	return c.JSON(http.StatusOK, SyncResponse{Success: true, Stats: stats})
}

func (s *Server) handleWeather(c echo.Context) error {
	status, err := s.backend.RunWeather(c.Request().Context())
	switch {
	case scheduler.IsBusy(err):
		return s.handleError(c, err, "Weather update already in progress", http.StatusConflict)
	case errors.IsCategory(err, errors.CategoryConfiguration):
		return s.handleError(c, err, "Weather integration is disabled", http.StatusServiceUnavailable)
	case err != nil:
		return c.JSON(statusFor(err), WeatherResponse{Status: status, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, WeatherResponse{Status: status})
}

// handleError logs err under a correlation id and writes an ErrorResponse.
func (s *Server) handleError(c echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	}

	s.log.Warn("api error",
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", c.Path()),
		logger.String("ip", c.RealIP()),
		logger.String("message", message),
		logger.Int("code", code),
		logger.Error(err))
	return c.JSON(code, resp)
}

// statusFor maps a failed run to an HTTP status: upstream failures are
// 502, cancellation 503 and anything else 500.
func statusFor(err error) int {
	switch {
	case hasAny(err, errors.CategoryCancellation, errors.CategoryTimeout):
		return http.StatusServiceUnavailable
	case hasAny(err, errors.CategoryNetwork, errors.CategoryHTTP, errors.CategoryIntegration,
		errors.CategoryLimit, errors.CategorySync, errors.CategoryWeather):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func hasAny(err error, categories ...errors.ErrorCategory) bool {
	for _, c := range categories {
		if errors.HasCategory(err, c) {
			return true
		}
	}
	return false
}
