package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/db"
	httpSrv "github.com/wxgate/weather-gateway/internal/http"
	"github.com/wxgate/weather-gateway/internal/kafka"
	"github.com/wxgate/weather-gateway/internal/logger"
	"github.com/wxgate/weather-gateway/internal/recorder"
	"github.com/wxgate/weather-gateway/internal/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		log := logger.L()
		defer func() { _ = log.Sync() }()

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() { _ = chDB.Close() }()

		pub := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SnapshotTopic)
		defer func() { _ = pub.Close() }()

		// usage recorder drains into ClickHouse off the request path
		logsRepo := repository.NewRequestLogRepository(chDB)
		rec := recorder.New(logsRepo, cfg.Recorder.BatchSize, cfg.Recorder.FlushInterval, cfg.Recorder.BufferSize, log)

		recCtx, stopRec := context.WithCancel(context.Background())
		recDone := make(chan struct{})
		go func() {
			defer close(recDone)
			rec.Run(recCtx)
		}()

		server := httpSrv.NewServer(cfg, mysqlDB, chDB, redisClient, pub, rec, log)

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting http", zap.String("addr", cfg.HTTP.Addr))
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		// let the recorder drain buffered usage rows
		stopRec()
		select {
		case <-recDone:
		case <-time.After(5 * time.Second):
			log.Warn("recorder drain timed out")
		}

		return nil
	},
}
