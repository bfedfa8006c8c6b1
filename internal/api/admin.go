package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

func registerAdminHandlers(e *echo.Echo, d Deps, validate *validator.Validate) {
	g := e.Group("/admin")

	g.GET("/duplicates", func(c echo.Context) error {
		groups, err := d.Radar.FindDuplicateGroups(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, groups)
	})

	g.POST("/smart-match/run", func(c echo.Context) error {
		res, err := d.Engine.SweepPending(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, res)
	})

	g.POST("/smart-match/reset", func(c echo.Context) error {
		n, err := d.Engine.ResetSmartMatches(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]int{"reverted": n})
	})

	g.POST("/blacklist/lift", func(c echo.Context) error {
		var req struct {
			URL string `json:"url" validate:"required,url"`
		}
		if err := c.Bind(&req); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(&req); err != nil {
			return badRequest(c, err)
		}
		if err := d.Engine.LiftBlacklist(c.Request().Context(), req.URL); err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "lifted"})
	})
}
