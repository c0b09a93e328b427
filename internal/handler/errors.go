package handler

import (
	"errors"
	"net/http"

	"storefront/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrTest500 is raised by the /test500 route
var ErrTest500 = errors.New("test 500 page")

// InternalServerError always fails. It exists to exercise the 500 page.
func InternalServerError(c echo.Context) error {
	return ErrTest500
}

// HTTPErrorHandler renders every unhandled error as JSON: unknown routes
// get the 404 page, anything that is not an echo.HTTPError the 500 page.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch code {
		case http.StatusNotFound:
			message = "Page not found"
		case http.StatusInternalServerError:
		default:
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		}
	}

	if code >= http.StatusInternalServerError {
		logger.FromEcho(c).Error("Request failed", zap.Error(err))
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, echo.Map{"error": message})
	}
	if writeErr != nil {
		logger.FromEcho(c).Error("Failed to write error response", zap.Error(writeErr))
	}
}
