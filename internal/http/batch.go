package http

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v4"

	"github.com/wxgate/weather-gateway/internal/batch"
	"github.com/wxgate/weather-gateway/internal/model"
)

type batchRequest struct {
	Locations []model.Location `json:"locations"`
	Endpoints []string         `json:"endpoints"` // defaults to ["current"]
	Units     string           `json:"units"`
	Days      int              `json:"days"`
}

type batchResponse struct {
	Results []batch.ItemResult `json:"results"`
	Count   int                `json:"count"`
}

func batchHandler(o *batch.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req batchRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		}

		units, ok := model.ParseUnits(req.Units)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "units must be metric, imperial, or standard"})
		}
		endpoints := req.Endpoints
		if len(endpoints) == 0 {
			endpoints = []string{"current"}
		}
		for _, ep := range endpoints {
			if ep != "current" && ep != "forecast" {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "endpoints may only contain current and forecast"})
			}
		}
		for _, loc := range req.Locations {
			if loc.Empty() {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "every location needs a city or lat/lon"})
			}
		}

		// Expansion order is locations-major so the response lines up with
		// the request.
		items := make([]batch.Item, 0, len(req.Locations)*len(endpoints))
		for _, loc := range req.Locations {
			for _, ep := range endpoints {
				items = append(items, batch.Item{Location: loc, Endpoint: ep, Units: units, Days: req.Days})
			}
		}

		results, err := o.Execute(c.Request().Context(), items)
		if err != nil {
			var tle *batch.TooLargeError
			if errors.As(err, &tle) {
				return c.JSON(http.StatusBadRequest, map[string]any{
					"error": tle.Error(),
					"max":   tle.Max,
				})
			}
			if errors.Is(err, batch.ErrEmptyBatch) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "locations must not be empty"})
			}
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return c.JSON(http.StatusOK, batchResponse{Results: results, Count: len(results)})
	}
}
