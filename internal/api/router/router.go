package router

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/agentvault/agent-vault/internal/api"
	"github.com/agentvault/agent-vault/internal/api/handlers"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Init builds the echo instance, wires middleware and the error
// handler, and attaches all routes.
func Init(s *api.Server) {
	s.Echo = echo.New()
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.HTTPErrorHandler = HTTPErrorHandler

	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestID())
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("Request")
			return nil
		},
	}))

	s.Router = &api.Router{
		Root:  s.Echo.Group(""),
		APIV1: s.Echo.Group("/api/v1"),
	}

	s.Router.Root.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "alive.")
	})
	s.Router.Root.GET("/readyz", func(c echo.Context) error {
		probe := filepath.Join(s.Config.Vault.Dir, ".readiness")
		if err := os.WriteFile(probe, []byte(time.Now().UTC().Format(time.RFC3339)), 0o600); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "wallet directory not writable")
		}
		return c.String(http.StatusOK, "ready.")
	})
	s.Router.Root.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handlers.AttachAllRoutes(s)
}
