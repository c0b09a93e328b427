package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/catalog"
	"storefront/pkg/logger"
	"storefront/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ReviewRequest is the body of a product review
type ReviewRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// Index lists the shop reviews shown on the home page
func (h *Handler) Index(c echo.Context) error {
	log := logger.FromEcho(c)

	reviews, err := h.catalog.ShopReviews(c.Request().Context())
	if err != nil {
		log.Error("Failed to list shop reviews", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve reviews"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": reviews})
}

// Shop lists products, optionally below a category slug, filtered by the
// q, t, p, fruitlist and page query parameters
func (h *Handler) Shop(c echo.Context) error {
	log := logger.FromEcho(c)
	slug := c.Param("slug")

	f, err := catalog.ParseFilter(c.QueryParams(), slug)
	if err != nil {
		log.Warn("Invalid shop filter", zap.String("query", c.QueryString()), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	page, err := h.catalog.Shop(c.Request().Context(), f)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		log.Info("Unknown category", zap.String("slug", slug))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Category not found"})
	case errors.Is(err, catalog.ErrPageOutOfRange):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Page not found"})
	case err != nil:
		log.Error("Failed to list products", zap.String("slug", slug), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve products"})
	}

	log.Debug("Products listed",
		zap.String("slug", slug),
		zap.Int("count", len(page.Products)),
		zap.Int64("total", page.Total))
	return c.JSON(http.StatusOK, page)
}

// ProductDetail shows one product with its reviews
func (h *Handler) ProductDetail(c echo.Context) error {
	log := logger.FromEcho(c)

	id, ok := paramID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}

	detail, err := h.catalog.Product(c.Request().Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}
	if err != nil {
		log.Error("Failed to load product", zap.Uint("product_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve product"})
	}

	category := ""
	if detail.Product.Category != nil {
		category = detail.Product.Category.Slug
	}
	prometheus.RecordProductView(strconv.FormatUint(uint64(id), 10), category)

	return c.JSON(http.StatusOK, detail)
}

// AddReview posts a review of a product by the signed-in user
func (h *Handler) AddReview(c echo.Context) error {
	log := logger.FromEcho(c)

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, ok := paramID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}

	var req ReviewRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	review, err := h.catalog.AddReview(c.Request().Context(), userID, id, req.Text)
	if errors.Is(err, catalog.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	}
	if err != nil {
		log.Error("Failed to add review", zap.Uint("product_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to add review"})
	}

	log.Info("Review added", zap.Uint("product_id", id), zap.Uint("review_id", review.ID))
	return c.JSON(http.StatusCreated, review)
}
