package http

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"

	"github.com/wxgate/weather-gateway/internal/cache"
	"github.com/wxgate/weather-gateway/internal/http/middleware"
	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/repository"
)

// usageHandler reads the caller's request history out of ClickHouse.
func usageHandler(logs repository.RequestLogRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		k, _ := middleware.KeyFromCtx(c)

		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		offset, _ := strconv.Atoi(c.QueryParam("offset"))

		rows, err := logs.ListByKey(c.Request().Context(), k.ID, c.QueryParam("endpoint"), limit, offset)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		if rows == nil {
			rows = []model.RequestLog{}
		}
		return c.JSON(http.StatusOK, map[string]any{"requests": rows, "count": len(rows)})
	}
}

// cacheStatsHandler exposes aggregate cache counters. Read-only.
func cacheStatsHandler(ca *cache.Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := ca.Stats(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return c.JSON(http.StatusOK, s)
	}
}
