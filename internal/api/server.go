// Package api exposes the reconciliation engine over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/ingest"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/matcher"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/metrics"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/radar"
)

// Deps are the services behind the HTTP routes.
type Deps struct {
	Engine   *matcher.Engine
	Radar    *radar.Radar
	Ingestor *ingest.Ingestor
}

// NewServer builds the Echo instance with every route registered.
func NewServer(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(recordMetrics)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	validate := validator.New()
	registerPurgatoryHandlers(e, d, validate)
	registerProductHandlers(e, d, validate)
	registerAdminHandlers(e, d, validate)
	registerDashboardHandlers(e, d, validate)
	return e
}

// recordMetrics counts every request by route template.
func recordMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		endpoint := c.Path()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(c.Request().Method, endpoint, c.Response().Status, time.Since(start))
		return nil
	}
}
