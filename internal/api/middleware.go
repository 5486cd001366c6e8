package api

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// requestLogging logs every request and counts it by route and status code. Handler errors are
// written through the error handler here so the final status is known.
func (s *Server) requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := s.clock.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			s.logger.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"latency", s.clock.Since(start),
			)
			return nil
		}
	}
}

// rateLimit rejects forecast requests above the configured rate
func (s *Server) rateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.limiter != nil && !s.limiter.AllowN(s.clock.Now(), 1) {
				s.metrics.RateLimited.Inc()
				return ErrRateLimited
			}
			return next(c)
		}
	}
}
