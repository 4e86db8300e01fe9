package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	echo "github.com/labstack/echo/v4"

	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/http/middleware"
	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/repository"
	"github.com/wxgate/weather-gateway/internal/util"
)

var validate = validator.New()

type createWebhookRequest struct {
	City        string  `json:"city" validate:"required"`
	Country     string  `json:"country" validate:"required"`
	Field       string  `json:"field" validate:"required"`
	Comparator  string  `json:"comparator" validate:"required"`
	Threshold   float64 `json:"threshold"`
	CallbackURL string  `json:"callback_url" validate:"required,http_url"`
}

func createWebhookHandler(subs repository.SubscriptionsRepository, cfg config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		k, _ := middleware.KeyFromCtx(c)

		var req createWebhookRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		}
		if err := validate.Struct(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		field, ok := model.ParseConditionField(req.Field)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "field must be one of temperature, humidity, wind_speed, precipitation_probability"})
		}
		cmp, ok := model.ParseComparator(req.Comparator)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "comparator must be one of > < >= <= =="})
		}

		ctx := c.Request().Context()
		n, err := subs.CountActiveByKey(ctx, k.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		if max := cfg.Tier(k.Tier.String()).MaxWebhooks; n >= max {
			return c.JSON(http.StatusForbidden, map[string]any{
				"error": "webhook limit reached for your plan",
				"limit": max,
			})
		}

		sub := model.WebhookSubscription{
			ID:            util.NewID(),
			APIKeyID:      k.ID,
			City:          req.City,
			Country:       req.Country,
			CondField:     field,
			CondOp:        cmp,
			CondThreshold: req.Threshold,
			CallbackURL:   req.CallbackURL,
			Status:        model.SubscriptionActive,
		}
		if err := subs.Insert(ctx, sub); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return c.JSON(http.StatusCreated, map[string]string{"id": sub.ID})
	}
}

func listWebhooksHandler(subs repository.SubscriptionsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		k, _ := middleware.KeyFromCtx(c)
		list, err := subs.ListByKey(c.Request().Context(), k.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		if list == nil {
			list = []model.WebhookSubscription{}
		}
		return c.JSON(http.StatusOK, map[string]any{"webhooks": list, "count": len(list)})
	}
}

func deleteWebhookHandler(subs repository.SubscriptionsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		k, _ := middleware.KeyFromCtx(c)
		ok, err := subs.Delete(c.Request().Context(), c.Param("id"), k.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "webhook not found"})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// activateWebhookHandler is the explicit user action that revives a
// subscription suspended by consecutive delivery failures.
func activateWebhookHandler(subs repository.SubscriptionsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		k, _ := middleware.KeyFromCtx(c)
		ok, err := subs.Activate(c.Request().Context(), c.Param("id"), k.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "webhook not found"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "active"})
	}
}
