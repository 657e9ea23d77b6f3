package config

import (
	"os"
	"strconv"
	"time"

	"checkin-system/internal/retry"
)

type Config struct {
	Environment string

	// Redis configuration; an empty URL falls back to process-local locks
	RedisURL      string
	RedisPoolSize int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string
	ScanChannel        string

	// Notifications
	NotifyTransport  string // line, pubnub, none
	LineBaseURL      string
	LineChannelToken string
	NotifyTimeout    time.Duration

	QRSecret string

	// Allocation retry
	AllocationMaxAttempts int
	AllocationBackoff     time.Duration
	AllocationMaxBackoff  time.Duration

	SeatLockTTL time.Duration

	// Monitoring
	EnableMetrics    bool
	MetricsPort      string
	DisplayRateLimit int // requests per minute per client
}

func LoadConfig() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPoolSize: getEnvAsInt("REDIS_POOL_SIZE", 20),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "checkin-server"),
		ScanChannel:        getEnv("SCAN_CHANNEL", "checkin-scans"),

		// Notifications
		NotifyTransport:  getEnv("NOTIFY_TRANSPORT", "none"),
		LineBaseURL:      getEnv("LINE_BASE_URL", "https://api.line.me"),
		LineChannelToken: getEnv("LINE_CHANNEL_TOKEN", ""),
		NotifyTimeout:    getEnvAsDuration("NOTIFY_TIMEOUT", "5s"),

		QRSecret: getEnv("QR_SECRET", ""),

		// Allocation
		AllocationMaxAttempts: getEnvAsInt("ALLOCATION_MAX_ATTEMPTS", 5),
		AllocationBackoff:     getEnvAsDuration("ALLOCATION_BACKOFF", "25ms"),
		AllocationMaxBackoff:  getEnvAsDuration("ALLOCATION_MAX_BACKOFF", "400ms"),

		SeatLockTTL: getEnvAsDuration("SEAT_LOCK_TTL", "2m"),

		// Monitoring
		EnableMetrics:    getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		DisplayRateLimit: getEnvAsInt("DISPLAY_RATE_LIMIT", 120),
	}
}

// Retry returns the retry policy for transactional queue operations. The
// attempt budget never exceeds five.
func (c *Config) Retry() retry.Config {
	cfg := retry.DefaultConfig()
	if c.AllocationMaxAttempts > 0 && c.AllocationMaxAttempts <= 5 {
		cfg.MaxAttempts = c.AllocationMaxAttempts
	}
	if c.AllocationBackoff > 0 {
		cfg.InitialInterval = c.AllocationBackoff
	}
	if c.AllocationMaxBackoff > 0 {
		cfg.MaxInterval = c.AllocationMaxBackoff
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
