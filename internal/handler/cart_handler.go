package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/service"
	"storefront/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const cartPath = "/api/cart"

// OutOfStockMessage is shown when a cart add asks for more than is in stock
const OutOfStockMessage = "Product of this quantity is not in stock!"

// CartItemRequest is the body of an add-to-cart request
type CartItemRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,min=1"`
}

// Cart lists the signed-in user's cart
func (h *Handler) Cart(c echo.Context) error {
	return h.listCart(c, false)
}

// Checkout lists the cart with its grand total
func (h *Handler) Checkout(c echo.Context) error {
	return h.listCart(c, true)
}

func (h *Handler) listCart(c echo.Context, checkout bool) error {
	log := logger.FromEcho(c)

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	view, err := h.carts.Items(c.Request().Context(), userID)
	if err != nil {
		log.Error("Failed to load cart", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve cart"})
	}

	if !checkout {
		return c.JSON(http.StatusOK, echo.Map{"cart_items": view.Items})
	}
	return c.JSON(http.StatusOK, view)
}

// AddToCart adds a product to the signed-in user's cart
func (h *Handler) AddToCart(c echo.Context) error {
	log := logger.FromEcho(c)

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req CartItemRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	item, err := h.carts.AddItem(c.Request().Context(), userID, req.ProductID, req.Quantity)
	switch {
	case errors.Is(err, service.ErrOutOfStock):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":    OutOfStockMessage,
			"redirect": safeRedirect(c),
		})
	case errors.Is(err, service.ErrProductNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
	case errors.Is(err, service.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case err != nil:
		log.Error("Failed to add to cart", zap.Uint("product_id", req.ProductID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to add to cart"})
	}

	log.Info("Added to cart",
		zap.Uint("product_id", req.ProductID),
		zap.Int("quantity", item.Quantity))
	return c.JSON(http.StatusCreated, echo.Map{
		"item":     item,
		"redirect": safeRedirect(c),
	})
}

// DeleteFromCart removes one of the signed-in user's cart lines
func (h *Handler) DeleteFromCart(c echo.Context) error {
	log := logger.FromEcho(c)

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, ok := paramID(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Cart item not found"})
	}

	err = h.carts.RemoveItem(c.Request().Context(), userID, id)
	if errors.Is(err, service.ErrCartItemNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Cart item not found"})
	}
	if err != nil {
		log.Error("Failed to delete cart item", zap.Uint("item_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete cart item"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Cart item deleted",
		"redirect": cartPath,
	})
}

// safeRedirect returns the Referer as a local path when it points back at
// this host, and the cart otherwise.
func safeRedirect(c echo.Context) string {
	ref := c.Request().Referer()
	if ref == "" {
		return cartPath
	}
	u, err := url.Parse(ref)
	if err != nil || u.Path == "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return cartPath
	}
	// Browsers read "/\host" as "//host".
	if strings.Contains(u.Path, `\`) || strings.Contains(u.RawQuery, `\`) {
		return cartPath
	}
	if u.Host != "" && !strings.EqualFold(u.Host, c.Request().Host) {
		return cartPath
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return cartPath
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
