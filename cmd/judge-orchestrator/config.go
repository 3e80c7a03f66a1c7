package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	gatewaysvc "codearena/internal/gateway/service"
	"codearena/internal/judge/backend"
	"codearena/internal/judge/controller"
	"codearena/internal/judge/harness"
	"codearena/internal/judge/service"
	"codearena/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr         = "0.0.0.0:8080"
	defaultReadTimeout      = 5 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 15 * time.Second
	defaultJobCacheTTL      = 30 * time.Second
	defaultPollLockTTL      = 30 * time.Second
	defaultDispatchTopic    = "judge.dispatch"
	defaultLeaderboardTopic = "leaderboard.events"
	defaultRound            = "round-1"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
	IdleTimeout time.Duration `yaml:"idleTimeout"`
	// TrustUserIDHeader accepts X-User-Id from a fronting proxy for log correlation.
	TrustUserIDHeader bool `yaml:"trustUserIdHeader"`
}

// KafkaConfig holds broker settings. With no brokers the in-process queue is used.
type KafkaConfig struct {
	mq.KafkaConfig   `yaml:",inline"`
	ConsumerGroup    string `yaml:"consumerGroup"`
	DispatchTopic    string `yaml:"dispatchTopic"`
	LeaderboardTopic string `yaml:"leaderboardTopic"`
	DeadLetterTopic  string `yaml:"deadLetterTopic"`
	MemoryBuffer     int    `yaml:"memoryBuffer"`
}

// HarnessConfig holds code wrapper settings.
type HarnessConfig struct {
	harness.TemplateConfig `yaml:",inline"`
	MaxCodeBytes           int `yaml:"maxCodeBytes"`
}

// DispatchConfig holds dispatch worker settings.
type DispatchConfig struct {
	PoolSize          int           `yaml:"poolSize"`
	AcquireTimeout    time.Duration `yaml:"acquireTimeout"`
	Concurrency       int           `yaml:"concurrency"`
	MaxRetries        int           `yaml:"maxRetries"`
	RetryDelay        time.Duration `yaml:"retryDelay"`
	PoolRetryMax      int           `yaml:"poolRetryMax"`
	PoolRetryBase     time.Duration `yaml:"poolRetryBaseDelay"`
	PoolRetryMaxDelay time.Duration `yaml:"poolRetryMaxDelay"`
	StoreTimeout      time.Duration `yaml:"storeTimeout"`
	// RunningTimeout moves a job stuck in running to error. Zero disables it.
	RunningTimeout time.Duration `yaml:"runningTimeout"`
}

// JobStoreConfig holds job persistence settings.
type JobStoreConfig struct {
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	PollLockTTL time.Duration `yaml:"pollLockTTL"`
}

// LeaderboardConfig holds scoring round settings.
type LeaderboardConfig struct {
	Round      string `yaml:"round"`
	RankingKey string `yaml:"rankingKey"`
}

// RateLimitConfig holds request limits for job submission.
type RateLimitConfig struct {
	Window       time.Duration          `yaml:"window"`
	RedisTimeout time.Duration          `yaml:"redisTimeout"`
	Submit       gatewaysvc.SubmitQuota `yaml:"submit"`
}

// AuthConfig holds optional bearer token settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`
}

// AppConfig holds judge-orchestrator config.
type AppConfig struct {
	Server      ServerConfig           `yaml:"server"`
	Logger      logger.Config          `yaml:"logger"`
	Database    db.MySQLConfig         `yaml:"database"`
	Redis       cache.RedisConfig      `yaml:"redis"`
	Kafka       KafkaConfig            `yaml:"kafka"`
	MinIO       storage.MinIOConfig    `yaml:"minio"`
	Backend     backend.Config         `yaml:"backend"`
	Harness     HarnessConfig          `yaml:"harness"`
	Dispatch    DispatchConfig         `yaml:"dispatch"`
	Poller      service.PollerConfig   `yaml:"poller"`
	Jobs        JobStoreConfig         `yaml:"jobs"`
	Leaderboard LeaderboardConfig      `yaml:"leaderboard"`
	RateLimit   RateLimitConfig        `yaml:"rateLimit"`
	Auth        AuthConfig             `yaml:"auth"`
	Watch       controller.WatchConfig `yaml:"watch"`
}

// loadEnvFile loads KEY=VALUE pairs into the process environment. A missing file is
// not an error; variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file failed: %w", err)
	}
	return nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if len(cfg.Backend.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one backend endpoint is required")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Kafka.DispatchTopic == "" {
		cfg.Kafka.DispatchTopic = defaultDispatchTopic
	}
	if cfg.Kafka.LeaderboardTopic == "" {
		cfg.Kafka.LeaderboardTopic = defaultLeaderboardTopic
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "judge-orchestrator"
	}
	if cfg.Dispatch.PoolSize <= 0 {
		cfg.Dispatch.PoolSize = 8
	}
	if cfg.Dispatch.Concurrency <= 0 {
		cfg.Dispatch.Concurrency = cfg.Dispatch.PoolSize
	}
	if cfg.Dispatch.PoolRetryMax <= 0 {
		cfg.Dispatch.PoolRetryMax = 5
	}
	if cfg.Dispatch.PoolRetryBase == 0 {
		cfg.Dispatch.PoolRetryBase = time.Second
	}
	if cfg.Dispatch.PoolRetryMaxDelay == 0 {
		cfg.Dispatch.PoolRetryMaxDelay = 30 * time.Second
	}
	if cfg.Jobs.CacheTTL == 0 {
		cfg.Jobs.CacheTTL = defaultJobCacheTTL
	}
	if cfg.Jobs.PollLockTTL == 0 {
		cfg.Jobs.PollLockTTL = defaultPollLockTTL
	}
	if cfg.Leaderboard.Round == "" {
		cfg.Leaderboard.Round = defaultRound
	}
}

func (d DispatchConfig) retryPolicy(k KafkaConfig) service.RetryPolicy {
	return service.RetryPolicy{
		Topic:      k.DispatchTopic,
		DeadLetter: k.DeadLetterTopic,
		MaxRetries: d.PoolRetryMax,
		BaseDelay:  d.PoolRetryBase,
		MaxDelay:   d.PoolRetryMaxDelay,
	}
}
