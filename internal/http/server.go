package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wxgate/weather-gateway/internal/batch"
	"github.com/wxgate/weather-gateway/internal/cache"
	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/http/middleware"
	"github.com/wxgate/weather-gateway/internal/limiter"
	"github.com/wxgate/weather-gateway/internal/metrics"
	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/repository"
	"github.com/wxgate/weather-gateway/internal/service/weather"
	"github.com/wxgate/weather-gateway/internal/upstream"
	"github.com/wxgate/weather-gateway/internal/util"
)

// UsageRecorder receives one row per admitted request, off the hot path.
type UsageRecorder interface {
	Record(model.RequestLog)
}

var registerMetricsOnce sync.Once

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, pub weather.Publisher, rec UsageRecorder, logger *zap.Logger) *Server {
	// repos (MySQL)
	keysRepo := repository.NewKeysRepository(mysqlDB)
	subsRepo := repository.NewSubscriptionsRepository(mysqlDB)

	// repos (ClickHouse)
	logsRepo := repository.NewRequestLogRepository(clickhouseDB)

	// admission
	lim := limiter.New(limiter.NewRedisCounterStore(rds), "")

	// read path
	ca := cache.New(cache.NewRedisEntryStore(rds, cfg.Cache.KeyPrefix), cfg.Cache.TTL)
	client := upstream.NewClient(cfg.Upstream)
	svc := weather.New(ca, client, pub, logger)
	orch := batch.NewOrchestrator(cfg.Batch.MaxLocations, cfg.Batch.Concurrency, svc.BatchFetch(0))

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	registerMetricsOnce.Do(func() {
		metrics.MustRegister(prometheus.DefaultRegisterer)
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(keysRepo)
	rlMW := middleware.RateLimitMiddleware(lim, cfg)

	// routes
	v1 := e.Group("/v1", authMW, rlMW, usageLogMiddleware(rec))
	v1.GET("/weather/current", currentHandler(svc, cfg))
	v1.GET("/weather/forecast", forecastHandler(svc, cfg))
	v1.GET("/weather/historical", historicalHandler(svc, cfg))
	v1.GET("/weather/analytics", analyticsHandler(svc, cfg))
	v1.POST("/weather/batch", batchHandler(orch))

	v1.POST("/webhooks", createWebhookHandler(subsRepo, cfg))
	v1.GET("/webhooks", listWebhooksHandler(subsRepo))
	v1.DELETE("/webhooks/:id", deleteWebhookHandler(subsRepo))
	v1.POST("/webhooks/:id/activate", activateWebhookHandler(subsRepo))

	v1.GET("/usage/requests", usageHandler(logsRepo))
	v1.GET("/cache/stats", cacheStatsHandler(ca))

	return &Server{e: e}
}

// usageLogMiddleware records every admitted request for the usage report and
// the request counter.
func usageLogMiddleware(rec UsageRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			k, ok := middleware.KeyFromCtx(c)
			if !ok {
				return err
			}
			status := c.Response().Status
			hit, _ := c.Get("cache_hit").(bool)
			endpoint := c.Path()

			metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
			if rec != nil {
				rec.Record(model.RequestLog{
					ID:         util.NewID(),
					APIKeyID:   k.ID,
					Endpoint:   endpoint,
					Status:     status,
					CacheHit:   hit,
					DurationMs: time.Since(start).Milliseconds(),
					CreatedAt:  time.Now().UTC(),
				})
			}
			return err
		}
	}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
