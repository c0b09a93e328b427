package handler

import (
	"errors"
	"net/http"

	"storefront/internal/catalog"
	"storefront/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ProductRequest defines the structure for product creation/update requests
type ProductRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	CategoryID  uint    `json:"category_id" validate:"required"`
	TagIDs      []uint  `json:"tag_ids"`
}

func (r ProductRequest) input() catalog.ProductInput {
	return catalog.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		CategoryID:  r.CategoryID,
		TagIDs:      r.TagIDs,
	}
}

// CategoryRequest defines the structure for category creation/update requests
type CategoryRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Slug     string `json:"slug" validate:"required,max=100"`
	ParentID *uint  `json:"parent_id"`
}

func (r CategoryRequest) input() catalog.CategoryInput {
	return catalog.CategoryInput{Name: r.Name, Slug: r.Slug, ParentID: r.ParentID}
}

// TagRequest defines the structure for tag creation requests
type TagRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

// CreateProduct handles creating a new product
func (h *Handler) CreateProduct(c echo.Context) error {
	log := logger.FromEcho(c)

	var req ProductRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	product, err := h.catalog.CreateProduct(c.Request().Context(), req.input())
	if err != nil {
		return catalogWriteError(c, "product", err)
	}

	log.Info("Product created successfully",
		zap.Uint("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Float64("price", product.Price))
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct handles updating an existing product
func (h *Handler) UpdateProduct(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := paramID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}

	var req ProductRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	product, err := h.catalog.UpdateProduct(c.Request().Context(), id, req.input())
	if err != nil {
		return catalogWriteError(c, "product", err)
	}

	log.Info("Product updated successfully",
		zap.Uint("product_id", id),
		zap.String("name", product.Name),
		zap.Float64("price", product.Price),
		zap.Int("stock", product.Stock))
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct handles deleting a product (soft delete)
func (h *Handler) DeleteProduct(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := paramID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}

	if err := h.catalog.DeleteProduct(c.Request().Context(), id); err != nil {
		return catalogWriteError(c, "product", err)
	}

	log.Info("Product deleted successfully", zap.Uint("product_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted successfully"})
}

// CreateCategory adds a new category
func (h *Handler) CreateCategory(c echo.Context) error {
	log := logger.FromEcho(c)

	var req CategoryRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	category, err := h.catalog.CreateCategory(c.Request().Context(), req.input())
	if err != nil {
		return catalogWriteError(c, "category", err)
	}

	log.Info("Category created successfully",
		zap.Uint("category_id", category.ID),
		zap.String("slug", category.Slug))
	return c.JSON(http.StatusCreated, category)
}

// UpdateCategory renames or moves a category
func (h *Handler) UpdateCategory(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := paramID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Category not found"})
	}

	var req CategoryRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	category, err := h.catalog.UpdateCategory(c.Request().Context(), id, req.input())
	if err != nil {
		return catalogWriteError(c, "category", err)
	}

	log.Info("Category updated successfully",
		zap.Uint("category_id", id),
		zap.String("slug", category.Slug))
	return c.JSON(http.StatusOK, category)
}

// DeleteCategory removes an unused category
func (h *Handler) DeleteCategory(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := paramID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Category not found"})
	}

	if err := h.catalog.DeleteCategory(c.Request().Context(), id); err != nil {
		return catalogWriteError(c, "category", err)
	}

	log.Info("Category deleted successfully", zap.Uint("category_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Category deleted successfully"})
}

// CreateTag adds a new product tag
func (h *Handler) CreateTag(c echo.Context) error {
	var req TagRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	tag, err := h.catalog.CreateTag(c.Request().Context(), req.Name)
	if err != nil {
		return catalogWriteError(c, "tag", err)
	}
	return c.JSON(http.StatusCreated, tag)
}

func catalogWriteError(c echo.Context, entity string, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		logger.FromEcho(c).Warn("Catalog write refused", zap.String("entity", entity), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, catalog.ErrConflict):
		logger.FromEcho(c).Warn("Catalog write refused", zap.String("entity", entity), zap.Error(err))
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		logger.FromEcho(c).Error("Catalog write failed", zap.String("entity", entity), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to save " + entity})
	}
}
