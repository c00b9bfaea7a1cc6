package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Execution modes for the automation run.
const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"
)

// Idempotency store backends.
const (
	IdempotencyBackendFile = "file"
	IdempotencyBackendBolt = "bolt"
)

type Config struct {
	Env      string
	LogLevel string
	Mode     string // DRY_RUN or LIVE

	// Shopify Admin API
	ShopifyStoreURL    string
	ShopifyAccessToken string
	ShopifyAPIVersion  string
	APIRateLimit       float64 // GraphQL requests per second
	APIBurst           int

	// Tracking provider
	TrackingAPIURL      string
	TrackingAPIKey      string
	DefaultCarrierCode  string
	TrackingSegmentSize int
	TrackingSyncDelay   time.Duration

	// Slack notifications
	SlackWebhookURL string
	SlackChannel    string
	SlackEnabled    bool
	AutomationID    string

	// HTTP / retry
	RequestTimeout time.Duration
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration

	// Business Rules
	RefundFullShipping    bool
	RefundPartialShipping bool
	RequiredDelayHours    int
	StoreTimezone         string
	MaxBatchRetries       int
	CloseWorkers          int

	// Retrieval bounds
	PageSize  int
	MaxOrders int

	// Idempotency
	IdempotencyBackend     string
	IdempotencyDir         string
	IdempotencyTTL         time.Duration
	IdempotencySaveEnabled bool

	// Audit
	AuditLogDir     string
	AuditLogEnabled bool
}

func LoadConfig() *Config {
	// 1. Check if a specific config file is requested via env var
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("Warning: Failed to load config file '%s': %v", configFile, err)
		} else {
			log.Printf("Loaded configuration from %s", configFile)
		}
	} else {
		// 2. Default fallback: Try loading .env (standard local dev)
		// We don't error here because in pure docker/cron envs, .env might not exist,
		// and we rely on system env vars.
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found or error loading it, relying on system env vars")
		}
	}

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Mode:     strings.ToUpper(getEnv("EXECUTION_MODE", ModeDryRun)),

		ShopifyStoreURL:    getEnv("SHOPIFY_STORE_URL", ""),
		ShopifyAccessToken: getEnv("SHOPIFY_ACCESS_TOKEN", ""),
		ShopifyAPIVersion:  getEnv("SHOPIFY_API_VERSION", "2025-07"),
		APIRateLimit:       getFloatEnv("API_RATE_LIMIT", 2),
		APIBurst:           getIntEnv("API_BURST", 4),

		TrackingAPIURL:      getEnv("TRACKING_API_URL", ""),
		TrackingAPIKey:      getEnv("TRACKING_API_KEY", ""),
		DefaultCarrierCode:  getEnv("DEFAULT_CARRIER_CODE", "21051"),
		TrackingSegmentSize: getIntEnv("TRACKING_SEGMENT_SIZE", 40),
		TrackingSyncDelay:   getDurationEnv("TRACKING_SYNC_DELAY", 5*time.Second),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		SlackChannel:    getEnv("SLACK_CHANNEL", "#refund-automation"),
		SlackEnabled:    getBoolEnv("SLACK_ENABLED", true),
		AutomationID:    getEnv("AUTOMATION_ID", "refund-automation"),

		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 15*time.Second),
		MaxRetries:     getIntEnv("MAX_RETRIES", 3),
		BaseRetryDelay: getDurationEnv("BASE_RETRY_DELAY", time.Second),
		MaxRetryDelay:  getDurationEnv("MAX_RETRY_DELAY", 30*time.Second),

		// Business rules: 120h post-delivery delay, shipping refunds on
		RefundFullShipping:    getBoolEnv("REFUND_FULL_SHIPPING", true),
		RefundPartialShipping: getBoolEnv("REFUND_PARTIAL_SHIPPING", true),
		RequiredDelayHours:    getIntEnv("REQUIRED_DELAY_HOURS", 120),
		StoreTimezone:         getEnv("STORE_TIMEZONE", "UTC"),
		MaxBatchRetries:       getIntEnv("MAX_BATCH_RETRIES", 2),
		CloseWorkers:          getIntEnv("CLOSE_WORKERS", 3),

		PageSize:  getIntEnv("ORDERS_PAGE_SIZE", 12),
		MaxOrders: getIntEnv("MAX_ORDERS", 10000),

		IdempotencyBackend:     getEnv("IDEMPOTENCY_BACKEND", IdempotencyBackendFile),
		IdempotencyDir:         getEnv("IDEMPOTENCY_DIR", ".cache"),
		IdempotencyTTL:         getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		IdempotencySaveEnabled: getBoolEnv("IDEMPOTENCY_SAVE_ENABLED", true),

		AuditLogDir:     getEnv("AUDIT_LOG_DIR", ".audit"),
		AuditLogEnabled: getBoolEnv("AUDIT_LOG_ENABLED", true),
	}

	cfg.Validate()
	return cfg
}

func (c *Config) Validate() {
	if c.Mode != ModeDryRun && c.Mode != ModeLive {
		log.Fatalf("CRITICAL: EXECUTION_MODE must be %s or %s, got %q", ModeDryRun, ModeLive, c.Mode)
	}
	if c.ShopifyStoreURL == "" {
		log.Fatal("CRITICAL: SHOPIFY_STORE_URL environment variable is required")
	}
	if c.ShopifyAccessToken == "" {
		log.Fatal("CRITICAL: SHOPIFY_ACCESS_TOKEN is required")
	}
	if c.TrackingAPIURL == "" {
		log.Fatal("CRITICAL: TRACKING_API_URL is required")
	}
	if c.TrackingAPIKey == "" {
		log.Fatal("CRITICAL: TRACKING_API_KEY is required")
	}
	if c.IdempotencyBackend != IdempotencyBackendFile && c.IdempotencyBackend != IdempotencyBackendBolt {
		log.Fatalf("CRITICAL: IDEMPOTENCY_BACKEND must be %q or %q", IdempotencyBackendFile, IdempotencyBackendBolt)
	}
	if c.Mode == ModeLive && !c.SlackEnabled {
		log.Println("WARNING: Slack notifications disabled in LIVE mode; terminal decisions will only be logged")
	}
}

// DryRun reports whether the run mutates nothing remotely.
func (c *Config) DryRun() bool {
	return c.Mode == ModeDryRun
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using fallback", key)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s, using fallback", key)
	}
	return fallback
}
