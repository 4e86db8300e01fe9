package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wxgate/weather-gateway/internal/cache"
	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/db"
	"github.com/wxgate/weather-gateway/internal/kafka"
	"github.com/wxgate/weather-gateway/internal/logger"
	"github.com/wxgate/weather-gateway/internal/metrics"
	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/repository"
	"github.com/wxgate/weather-gateway/internal/service/weather"
	"github.com/wxgate/weather-gateway/internal/upstream"
	"github.com/wxgate/weather-gateway/internal/webhook"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run webhook evaluation and delivery worker",
	RunE:  runNotify,
}

func runNotify(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Log.Level)
	log := logger.L()
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) MySQL (subscriptions)
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

	subsRepo := repository.NewSubscriptionsRepository(mysqlDB)

	// 3) Redis-backed cache for sweep fetches; shares entries with the API
	// server so a sweep rarely hits the provider for a hot location.
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

	ca := cache.New(cache.NewRedisEntryStore(redisClient, cfg.Cache.KeyPrefix), cfg.Cache.TTL)
	client := upstream.NewClient(cfg.Upstream)
	// nil publisher: sweeps evaluate in-process, no need to re-enter the
	// snapshot topic
	svc := weather.New(ca, client, nil, log)

	// 4) engine + notifier
	trigPub := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TriggerTopic)
	defer func() { _ = trigPub.Close() }()

	engine := webhook.NewEngine(subsRepo, trigPub, svc.Snapshot, cfg.Webhooks.RenotifyInterval, log)
	deliverer := webhook.NewDeliverer(cfg.Webhooks.DeliveryTimeout, cfg.Webhooks.MaxAttempts, cfg.Webhooks.BackoffBase, cfg.Webhooks.BackoffCap, log)
	notifier := webhook.NewNotifier(subsRepo, deliverer, cfg.Webhooks.FailThreshold, log)

	// 5) kafka consumers
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "wxgw"
	}
	commitInterval := time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond

	snapConsumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.SnapshotTopic,
		GroupID:        groupID + "-engine",
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: commitInterval,
	})
	defer snapConsumer.Close()

	trigConsumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.TriggerTopic,
		GroupID:        groupID + "-notifier",
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: commitInterval,
	})
	defer trigConsumer.Close()

	// 6) periodic sweep for subscriptions whose location sees no API traffic
	sched := gocron.NewScheduler(time.UTC)
	minutes := int(cfg.Webhooks.SweepInterval.Minutes())
	if minutes <= 0 {
		minutes = 5
	}
	if _, err := sched.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		engine.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	sched.StartAsync()
	defer sched.Stop()

	// 7) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	go func() {
		errCh <- snapConsumer.Run(ctx, func(ctx context.Context, m kafka.Message) error {
			var ev model.SnapshotEvent
			if err := json.Unmarshal(m.Value, &ev); err != nil {
				log.Warn("drop malformed snapshot event", zap.Error(err))
				return nil
			}
			return engine.HandleSnapshot(ctx, ev)
		})
	}()

	go func() {
		errCh <- trigConsumer.Run(ctx, func(ctx context.Context, m kafka.Message) error {
			var ev model.TriggerEvent
			if err := json.Unmarshal(m.Value, &ev); err != nil {
				log.Warn("drop malformed trigger event", zap.Error(err))
				return nil
			}
			notifier.HandleTrigger(ctx, ev)
			return nil
		})
	}()

	log.Info("notify worker started",
		zap.String("snapshot_topic", cfg.Kafka.SnapshotTopic),
		zap.String("trigger_topic", cfg.Kafka.TriggerTopic),
		zap.String("group", groupID),
		zap.Duration("sweep_interval", cfg.Webhooks.SweepInterval))

	err = <-errCh
	if ctx.Err() != nil {
		return nil
	}
	return err
}
