package middleware

import (
	"strconv"
	"time"

	"storefront/prometheus"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware adds prometheus metrics to track HTTP requests
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		if prometheus.HttpRequestsTotal == nil {
			return err
		}

		duration := time.Since(start).Seconds()
		method := c.Request().Method
		path := c.Path()
		status := c.Response().Status
		if err != nil {
			// The error handler has not written the response yet.
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else {
				status = 500
			}
		}
		statusStr := strconv.Itoa(status)

		prometheus.HttpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
		prometheus.HttpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		return err
	}
}
