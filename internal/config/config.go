package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	// Server
	Port        string `env:"PORT" envDefault:"3000"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// PostgreSQL
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"goattend"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	// Kafka
	KafkaBroker string `env:"KAFKA_BROKER" envDefault:"localhost:9092"`

	// JWT
	JWTSecret        string `env:"JWT_SECRET"`
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"60"`

	// Snowflake node for audit record IDs
	SnowflakeNodeID int64 `env:"SNOWFLAKE_NODE_ID" envDefault:"1"`

	// Casbin model file
	RBACModelPath string `env:"RBAC_MODEL_PATH" envDefault:"config/rbac_model.conf"`

	// Geofence validation
	MaxVelocityKmph   float64 `env:"GEO_MAX_VELOCITY_KMPH" envDefault:"150"`
	MinAccuracyMeters float64 `env:"GEO_MIN_ACCURACY_METERS" envDefault:"1"`

	// Risk scoring. Weights are renormalized over the components that
	// could actually be computed, so they need not sum to 1 exactly.
	RiskWeightLocation   float64 `env:"RISK_WEIGHT_LOCATION" envDefault:"0.4"`
	RiskWeightTemporal   float64 `env:"RISK_WEIGHT_TEMPORAL" envDefault:"0.2"`
	RiskWeightBehavioral float64 `env:"RISK_WEIGHT_BEHAVIORAL" envDefault:"0.2"`
	RiskWeightDevice     float64 `env:"RISK_WEIGHT_DEVICE" envDefault:"0.2"`
	RiskCriticalScore    float64 `env:"RISK_CRITICAL_SCORE" envDefault:"80"`
	RiskWarningScore     float64 `env:"RISK_WARNING_SCORE" envDefault:"50"`

	// Sync engine
	IdempotencyWindow  time.Duration `env:"SYNC_IDEMPOTENCY_WINDOW" envDefault:"24h"`
	SubmitLockTTL      time.Duration `env:"SYNC_SUBMIT_LOCK_TTL" envDefault:"30s"`
	ProcessingTimeout  time.Duration `env:"SYNC_PROCESSING_TIMEOUT" envDefault:"5s"`
	PersistMaxRetries  int           `env:"SYNC_PERSIST_MAX_RETRIES" envDefault:"3"`
	PersistBackoffBase time.Duration `env:"SYNC_PERSIST_BACKOFF_BASE" envDefault:"100ms"`
	ShiftWindowHours   int           `env:"SYNC_SHIFT_WINDOW_HOURS" envDefault:"24"`

	// Device fingerprint heuristics
	DeviceShareWindow    time.Duration `env:"DEVICE_SHARE_WINDOW" envDefault:"1h"`
	DeviceShareMaxUsers  int           `env:"DEVICE_SHARE_MAX_USERS" envDefault:"1"`
	DeviceSwitchWindow   time.Duration `env:"DEVICE_SWITCH_WINDOW" envDefault:"24h"`
	DeviceSwitchMaxCount int           `env:"DEVICE_SWITCH_MAX_COUNT" envDefault:"2"`

	// Outbox worker
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"3s"`

	// Baseline refresher
	BaselineRefreshInterval time.Duration `env:"BASELINE_REFRESH_INTERVAL" envDefault:"1h"`
	BaselineLookbackDays    int           `env:"BASELINE_LOOKBACK_DAYS" envDefault:"30"`
	BaselineMinSamples      int           `env:"BASELINE_MIN_SAMPLES" envDefault:"5"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
