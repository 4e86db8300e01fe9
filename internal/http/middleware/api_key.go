package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/repository"
)

// KeyFromCtx extracts the authenticated API key row set by APIKeyMiddleware.
func KeyFromCtx(c echo.Context) (*model.APIKey, bool) {
	k, ok := c.Get("api_key").(*model.APIKey)
	return k, ok
}

// extractKey accepts either "Authorization: Bearer <key>" or "X-API-Key".
func extractKey(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
}

// APIKeyMiddleware authenticates requests against the key registry. Unknown
// and revoked keys are indistinguishable to the caller.
func APIKeyMiddleware(keys repository.KeysRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := extractKey(c)
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			k, err := keys.GetByKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if !k.Active() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set("api_key", k)
			return next(c)
		}
	}
}
