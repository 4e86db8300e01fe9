package middleware

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"

	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/limiter"
	"github.com/wxgate/weather-gateway/internal/metrics"
)

// RateLimitMiddleware admits requests against the caller's tier ceilings.
// Cached responses count the same as upstream fetches: quotas meter requests,
// not provider load. Expects the api key in echo.Context (set by
// APIKeyMiddleware).
func RateLimitMiddleware(l *limiter.Limiter, cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			k, ok := KeyFromCtx(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}

			pol := cfg.Tier(k.Tier.String())
			err := l.Admit(c.Request().Context(), k.ID, pol)
			if err == nil {
				return next(c)
			}

			var rle *limiter.RateLimitError
			if errors.As(err, &rle) {
				metrics.RateLimited.WithLabelValues(rle.Window.String()).Inc()
				h := c.Response().Header()
				h.Set("Retry-After", strconv.Itoa(rle.RetryAfterSeconds()))
				h.Set("X-RateLimit-Window", rle.Window.String())
				h.Set("X-RateLimit-Limit", strconv.Itoa(rle.Limit))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error":       "rate limit exceeded",
					"window":      rle.Window.String(),
					"limit":       rle.Limit,
					"retry_after": rle.RetryAfterSeconds(),
				})
			}
			// Counter store failure: fail open rather than reject traffic.
			return next(c)
		}
	}
}
