package api

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

type createProductRequest struct {
	Name        string  `json:"name" validate:"required"`
	EAN         string  `json:"ean" validate:"omitempty,numeric,min=8,max=14"`
	UPC         string  `json:"upc" validate:"omitempty,numeric,min=8,max=14"`
	ASIN        string  `json:"asin" validate:"omitempty,alphanum,len=10"`
	Category    string  `json:"category"`
	SubCategory string  `json:"sub_category"`
	FigureID    string  `json:"figure_id"`
	VariantName string  `json:"variant_name"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
	RetailPrice float64 `json:"retail_price" validate:"gte=0"`
}

func (r createProductRequest) product() models.Product {
	return models.Product{
		Name:        strings.TrimSpace(r.Name),
		EAN:         optional(r.EAN),
		UPC:         optional(r.UPC),
		ASIN:        optional(r.ASIN),
		Category:    r.Category,
		SubCategory: r.SubCategory,
		FigureID:    optional(r.FigureID),
		VariantName: r.VariantName,
		ImageURL:    r.ImageURL,
		RetailPrice: r.RetailPrice,
	}
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func registerProductHandlers(e *echo.Echo, d Deps, validate *validator.Validate) {
	g := e.Group("/products")

	g.POST("", func(c echo.Context) error {
		var req createProductRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(&req); err != nil {
			return badRequest(c, err)
		}
		p, err := d.Engine.CreateProduct(c.Request().Context(), req.product())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusCreated, p)
	})

	g.GET("/:id", func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return badRequest(c, err)
		}
		view, err := d.Engine.Product(c.Request().Context(), id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, view)
	})

	g.GET("/offers/:id/history", func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return badRequest(c, err)
		}
		entries, err := d.Engine.OfferHistory(c.Request().Context(), id)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, entries)
	})

	g.POST("/offers/:id/unlink", func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return badRequest(c, err)
		}
		if err := d.Engine.Unlink(c.Request().Context(), id); err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "unlinked"})
	})

	g.POST("/offers/:id/relink", func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return badRequest(c, err)
		}
		var req struct {
			ProductID uint `json:"product_id" validate:"required"`
		}
		if err := c.Bind(&req); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(&req); err != nil {
			return badRequest(c, err)
		}
		offer, err := d.Engine.Relink(c.Request().Context(), id, req.ProductID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, offer)
	})

	g.POST("/merge", func(c echo.Context) error {
		var req struct {
			SourceID uint `json:"source_id" validate:"required"`
			TargetID uint `json:"target_id" validate:"required"`
		}
		if err := c.Bind(&req); err != nil {
			return badRequest(c, err)
		}
		if err := validate.Struct(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := d.Engine.Merge(c.Request().Context(), req.SourceID, req.TargetID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, res)
	})
}
