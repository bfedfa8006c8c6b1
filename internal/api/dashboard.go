package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

func registerDashboardHandlers(e *echo.Echo, d Deps, validate *validator.Validate) {
	g := e.Group("/dashboard")

	g.GET("/history", func(c echo.Context) error {
		limit, err := queryInt(c, "limit", defaultPageSize)
		if err != nil {
			return badRequest(c, err)
		}
		entries, err := d.Engine.History(c.Request().Context(), limit)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, entries)
	})

	g.GET("/stats", func(c echo.Context) error {
		stats, err := d.Engine.Stats(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, stats)
	})

	g.POST("/revert", func(c echo.Context) error {
		var req struct {
			HistoryID uint `json:"history_id" validate:"required"`
		}
		if err := c.Bind(&req); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(&req); err != nil {
			return badRequest(c, err)
		}
		entry, err := d.Engine.Revert(c.Request().Context(), req.HistoryID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, entry)
	})
}
