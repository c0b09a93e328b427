package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/labstack/echo/v4"
)

// Handler serves the storefront HTTP API
type Handler struct {
	catalog  *service.CatalogService
	carts    *service.CartService
	contact  *service.ContactService
	accounts *service.AccountService
}

func New(catalog *service.CatalogService, carts *service.CartService, contact *service.ContactService, accounts *service.AccountService) *Handler {
	return &Handler{
		catalog:  catalog,
		carts:    carts,
		contact:  contact,
		accounts: accounts,
	}
}

// Routes mounts every storefront route on e. auth guards the routes that
// need a signed-in user.
func (h *Handler) Routes(e *echo.Echo, auth echo.MiddlewareFunc) {
	e.GET("/health", Health)
	e.GET("/test500", InternalServerError)

	e.GET("/", h.Index)
	e.GET("/api/reviews", h.Index)

	accounts := e.Group("/auth")
	accounts.POST("/register", h.Register)
	accounts.POST("/login", h.Login)

	e.GET("/api/shop", h.Shop)
	e.GET("/api/shop/:slug", h.Shop)
	e.GET("/api/products/:id", h.ProductDetail)
	e.POST("/api/products/:id/reviews", h.AddReview, auth)

	e.POST("/api/contact", h.Contact)

	cart := e.Group("/api", auth)
	cart.GET("/cart", h.Cart)
	cart.GET("/checkout", h.Checkout)
	cart.POST("/cart/items", h.AddToCart)
	cart.DELETE("/cart/items/:id", h.DeleteFromCart)

	admin := e.Group("/api/admin", auth, middleware.RequireStaff)
	admin.POST("/products", h.CreateProduct)
	admin.PUT("/products/:id", h.UpdateProduct)
	admin.DELETE("/products/:id", h.DeleteProduct)
	admin.POST("/categories", h.CreateCategory)
	admin.PUT("/categories/:id", h.UpdateCategory)
	admin.DELETE("/categories/:id", h.DeleteCategory)
	admin.POST("/tags", h.CreateTag)
}

// Health reports liveness
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func paramID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func currentUser(c echo.Context) (uint, error) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return userID, nil
}
