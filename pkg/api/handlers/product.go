package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/api/errors"
	"github.com/jordanlanch/leadflow/pkg/products"
)

// ProductHandler handles product catalog endpoints
type ProductHandler struct {
	products *products.Service
}

// NewProductHandler creates a new product handler
func NewProductHandler(productService *products.Service) *ProductHandler {
	return &ProductHandler{products: productService}
}

// List godoc
// @Summary List all products
// @Tags Products
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /products [get]
func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, total, err := h.products.List(ctx)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"products": list, "total": total})
}

// Get godoc
// @Summary Get a product by id
// @Tags Products
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} models.Product
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.products.Get(ctx, c.Param("id"))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Create godoc
// @Summary Create a product
// @Tags Products
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} map[string]any
// @Failure 400 {object} models.ErrorResponse
// @Router /products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	name := c.FormValue("name")
	description := c.FormValue("description")

	var image *products.Image
	if f, err := openFormFile(c, "image"); err != nil {
		return errors.ValidationError(c, err)
	} else if f != nil {
		defer f.close()
		image = &products.Image{Filename: f.filename, ContentType: f.contentType, Body: f.body}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p, err := h.products.Create(ctx, name, description, image)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"message": "Product created successfully",
		"product": p,
	})
}

// Update godoc
// @Summary Update a product
// @Tags Products
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [put]
func (h *ProductHandler) Update(c echo.Context) error {
	name := c.FormValue("name")
	description := c.FormValue("description")

	var image *products.Image
	if f, err := openFormFile(c, "image"); err != nil {
		return errors.ValidationError(c, err)
	} else if f != nil {
		defer f.close()
		image = &products.Image{Filename: f.filename, ContentType: f.contentType, Body: f.body}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p, err := h.products.Update(ctx, c.Param("id"), name, description, image)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": p,
	})
}

// Delete godoc
// @Summary Delete a product
// @Tags Products
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [delete]
func (h *ProductHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.products.Delete(ctx, id); err != nil {
		return errors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":   "Product deleted successfully",
		"productId": id,
	})
}
