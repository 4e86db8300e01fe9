package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig            `mapstructure:"http"`
	Log        LogConfig             `mapstructure:"log"`
	MySQL      DatabaseConfig        `mapstructure:"mysql"`
	ClickHouse DatabaseConfig        `mapstructure:"clickhouse"`
	Redis      RedisConfig           `mapstructure:"redis"`
	Kafka      KafkaConfig           `mapstructure:"kafka"`
	Upstream   UpstreamConfig        `mapstructure:"upstream"`
	Cache      CacheConfig           `mapstructure:"cache"`
	Batch      BatchConfig           `mapstructure:"batch"`
	Webhooks   WebhookConfig         `mapstructure:"webhooks"`
	Recorder   RecorderConfig        `mapstructure:"recorder"`
	Tiers      map[string]TierConfig `mapstructure:"tiers"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	SnapshotTopic  string   `mapstructure:"snapshot_topic"`
	TriggerTopic   string   `mapstructure:"trigger_topic"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type BreakerConfig struct {
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	OpenFor     time.Duration `mapstructure:"open_for"`
}

type UpstreamConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	TimeoutMs  int           `mapstructure:"timeout_ms"`
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"retry_backoff"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

type CacheConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type BatchConfig struct {
	MaxLocations int `mapstructure:"max_locations"`
	Concurrency  int `mapstructure:"concurrency"`
}

type WebhookConfig struct {
	RenotifyInterval time.Duration `mapstructure:"renotify_interval"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	DeliveryTimeout  time.Duration `mapstructure:"delivery_timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	FailThreshold    int           `mapstructure:"fail_threshold"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
}

type RecorderConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	BufferSize    int           `mapstructure:"buffer_size"`
}

// TierConfig is the static per-tier policy table (read-only at runtime).
type TierConfig struct {
	PerMinute   int           `mapstructure:"per_minute"`
	PerDay      int           `mapstructure:"per_day"`
	PerMonth    int           `mapstructure:"per_month"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"` // 0 = use cache.ttl
	Historical  bool          `mapstructure:"historical"`
	MaxWebhooks int           `mapstructure:"max_webhooks"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (WXGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (WXGW_*)
	v.SetEnvPrefix("WXGW")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validateTiers(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validateTiers() error {
	for _, name := range []string{"basic", "premium", "enterprise"} {
		t, ok := c.Tiers[name]
		if !ok {
			return fmt.Errorf("config: tier %q missing", name)
		}
		if t.PerMinute <= 0 || t.PerDay <= 0 || t.PerMonth <= 0 {
			return fmt.Errorf("config: tier %q has non-positive ceiling", name)
		}
	}
	return nil
}

// Tier returns the policy for a tier name, falling back to basic.
func (c Config) Tier(name string) TierConfig {
	if t, ok := c.Tiers[name]; ok {
		return t
	}
	return c.Tiers["basic"]
}
