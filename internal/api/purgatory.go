package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/ingest"
)

const defaultPageSize = 50

func registerPurgatoryHandlers(e *echo.Echo, d Deps, validate *validator.Validate) {
	g := e.Group("/purgatory")

	g.GET("", func(c echo.Context) error {
		limit, err := queryInt(c, "limit", defaultPageSize)
		if err != nil {
			return badRequest(c, err)
		}
		views, err := d.Engine.ListPending(c.Request().Context(), limit)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, views)
	})

	g.GET("/:id/suggestions", func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return badRequest(c, err)
		}
		suggestions, err := d.Engine.Suggest(c.Request().Context(), id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, suggestions)
	})

	g.POST("/import", func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return badRequest(c, err)
		}
		listings, err := ingest.Decode(body)
		if err != nil {
			return badRequest(c, err)
		}
		res, err := d.Ingestor.Ingest(c.Request().Context(), listings)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, res)
	})

	g.POST("/match", func(c echo.Context) error {
		var req struct {
			PendingID uint `json:"pending_id" validate:"required"`
			ProductID uint `json:"product_id" validate:"required"`
		}
		if err := c.Bind(&req); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(&req); err != nil {
			return badRequest(c, err)
		}
		offer, err := d.Engine.ConfirmMatch(c.Request().Context(), req.PendingID, req.ProductID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, offer)
	})

	g.POST("/discard", func(c echo.Context) error {
		var req struct {
			PendingID uint   `json:"pending_id" validate:"required"`
			Reason    string `json:"reason"`
		}
		if err := c.Bind(&req); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(&req); err != nil {
			return badRequest(c, err)
		}
		if err := d.Engine.Discard(c.Request().Context(), req.PendingID, req.Reason); err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "discarded"})
	})

	g.POST("/discard-bulk", func(c echo.Context) error {
		var req struct {
			PendingIDs []uint `json:"pending_ids" validate:"required,min=1"`
			Reason     string `json:"reason"`
		}
		if err := c.Bind(&req); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(&req); err != nil {
			return badRequest(c, err)
		}
		return c.JSON(http.StatusOK, d.Engine.DiscardBulk(c.Request().Context(), req.PendingIDs, req.Reason))
	})
}

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", c.Param("id"))
	}
	return uint(id), nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}
