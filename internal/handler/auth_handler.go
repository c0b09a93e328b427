package handler

import (
	"errors"
	"net/http"

	"storefront/internal/service"
	"storefront/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Register(c echo.Context) error {
	log := logger.FromEcho(c)

	var req RegisterRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	user, err := h.accounts.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if errors.Is(err, service.ErrEmailTaken) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Email already registered"})
	}
	if err != nil {
		log.Error("Failed to register user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to register"})
	}

	log.Info("User registered", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) Login(c echo.Context) error {
	log := logger.FromEcho(c)

	var req LoginRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	token, user, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		log.Info("Login refused")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		log.Error("Login failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}
