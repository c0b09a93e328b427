package handler

import (
	"net/http"

	"storefront/internal/service"
	"storefront/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ContactRequest is the contact form
type ContactRequest struct {
	SenderName  string `json:"sender_name" validate:"required,max=100"`
	SenderEmail string `json:"sender_email" validate:"required,email"`
	Message     string `json:"message" validate:"required"`
}

// Contact emails the form to the shop owner
func (h *Handler) Contact(c echo.Context) error {
	log := logger.FromEcho(c)

	var req ContactRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	err := h.contact.Send(c.Request().Context(), service.ContactMessage{
		SenderName:  req.SenderName,
		SenderEmail: req.SenderEmail,
		Message:     req.Message,
	})
	if err != nil {
		log.Error("Failed to send contact message", zap.String("sender_email", req.SenderEmail), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to send message"})
	}

	log.Info("Contact message sent", zap.String("sender_email", req.SenderEmail))
	return c.JSON(http.StatusOK, echo.Map{"message": "Message sent successfully!"})
}
