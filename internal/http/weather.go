package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"

	"github.com/wxgate/weather-gateway/internal/analytics"
	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/http/middleware"
	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/service/weather"
	"github.com/wxgate/weather-gateway/internal/upstream"
)

// parseLocation reads city/country or lat/lon query params.
func parseLocation(c echo.Context) (model.Location, error) {
	loc := model.Location{
		City:    c.QueryParam("city"),
		Country: c.QueryParam("country"),
	}
	latS, lonS := c.QueryParam("lat"), c.QueryParam("lon")
	if latS != "" || lonS != "" {
		lat, err1 := strconv.ParseFloat(latS, 64)
		lon, err2 := strconv.ParseFloat(lonS, 64)
		if err1 != nil || err2 != nil {
			return model.Location{}, errors.New("lat and lon must both be valid numbers")
		}
		loc.Lat, loc.Lon = &lat, &lon
	}
	if loc.Empty() {
		return model.Location{}, errors.New("city or lat/lon is required")
	}
	return loc, nil
}

func parseUnits(c echo.Context) (model.Units, error) {
	units, ok := model.ParseUnits(c.QueryParam("units"))
	if !ok {
		return "", errors.New("units must be metric, imperial, or standard")
	}
	return units, nil
}

// upstreamError maps upstream failures onto response codes.
func upstreamError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, upstream.ErrLocationNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "location not found"})
	case errors.Is(err, upstream.ErrRateLimited):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "weather provider is throttling, try again shortly"})
	case errors.Is(err, upstream.ErrUnavailable):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "weather provider unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

type currentResponse struct {
	Data   model.WeatherSnapshot `json:"data"`
	Cached bool                  `json:"cached"`
}

type forecastResponse struct {
	Data   model.Forecast `json:"data"`
	Cached bool           `json:"cached"`
}

type historicalResponse struct {
	Data   model.Forecast          `json:"data"`
	Report analytics.HistoryReport `json:"report"`
	Cached bool                    `json:"cached"`
}

type analyticsResponse struct {
	Data     model.WeatherSnapshot `json:"data"`
	Insights analytics.Result      `json:"insights"`
	Cached   bool                  `json:"cached"`
}

func currentHandler(svc *weather.Service, cfg config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		loc, err := parseLocation(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		units, err := parseUnits(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		snap, hit, err := svc.Current(c.Request().Context(), loc, units, tierTTL(c, cfg))
		if err != nil {
			return upstreamError(c, err)
		}
		markCacheHit(c, hit)
		return c.JSON(http.StatusOK, currentResponse{Data: snap, Cached: hit})
	}
}

func forecastHandler(svc *weather.Service, cfg config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		loc, err := parseLocation(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		units, err := parseUnits(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		days := 5
		if d := c.QueryParam("days"); d != "" {
			days, err = strconv.Atoi(d)
			if err != nil || days < 1 || days > 16 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "days must be between 1 and 16"})
			}
		}

		fc, hit, err := svc.Forecast(c.Request().Context(), loc, units, days, tierTTL(c, cfg))
		if err != nil {
			return upstreamError(c, err)
		}
		markCacheHit(c, hit)
		return c.JSON(http.StatusOK, forecastResponse{Data: fc, Cached: hit})
	}
}

func historicalHandler(svc *weather.Service, cfg config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		k, _ := middleware.KeyFromCtx(c)
		if k == nil || !cfg.Tier(k.Tier.String()).Historical {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "historical data requires a premium or enterprise plan"})
		}

		loc, err := parseLocation(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		units, err := parseUnits(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		from, err := time.Parse("2006-01-02", c.QueryParam("from"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "from must be YYYY-MM-DD"})
		}
		to, err := time.Parse("2006-01-02", c.QueryParam("to"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "to must be YYYY-MM-DD"})
		}
		if to.Before(from) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "to must not precede from"})
		}

		fc, hit, err := svc.Historical(c.Request().Context(), loc, units, from, to, tierTTL(c, cfg))
		if err != nil {
			return upstreamError(c, err)
		}
		markCacheHit(c, hit)
		return c.JSON(http.StatusOK, historicalResponse{Data: fc, Report: analytics.AnalyzeHistory(fc), Cached: hit})
	}
}

func analyticsHandler(svc *weather.Service, cfg config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		loc, err := parseLocation(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		units, err := parseUnits(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		snap, insights, hit, err := svc.Analytics(c.Request().Context(), loc, units, tierTTL(c, cfg))
		if err != nil {
			return upstreamError(c, err)
		}
		markCacheHit(c, hit)
		return c.JSON(http.StatusOK, analyticsResponse{Data: snap, Insights: insights, Cached: hit})
	}
}

// tierTTL resolves the caller's cache TTL override; 0 means cache default.
func tierTTL(c echo.Context, cfg config.Config) time.Duration {
	if k, ok := middleware.KeyFromCtx(c); ok {
		return cfg.Tier(k.Tier.String()).CacheTTL
	}
	return 0
}

// markCacheHit records the hit flag for the usage log middleware.
func markCacheHit(c echo.Context, hit bool) {
	c.Set("cache_hit", hit)
}
