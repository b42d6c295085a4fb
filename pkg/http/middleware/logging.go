package middleware

import (
	"time"

	applogger "NewsDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one line per request. Analysis calls are slow by
// nature, so only requests above slowThreshold are raised to warn.
func RequestLogging(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			latency := time.Since(start)
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", c.Path()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency_ms", latency),
				applogger.String("remote", c.RealIP()),
				applogger.String("request_id", requestID(c)),
			}
			if slowThreshold > 0 && latency >= slowThreshold {
				l.Warn("http request slow", fields...)
			} else {
				l.Debug("http request", fields...)
			}

			return err
		}
	}
}
