package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	LogFile  string // Optional rotating log file, in addition to stdout
	HTTPPort string

	// Market View backend
	APIBaseURL   string
	WSURL        string
	APITimeout   time.Duration
	APIRateLimit float64 // Requests per second
	APIRateBurst int

	// WebSocket
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Market catalog cache (mirrors the UI's stale times)
	MarketCacheTTL     time.Duration
	MarketListCacheTTL time.Duration
	OrderbookCacheTTL  time.Duration

	// Trending discovery
	TrendingPollInterval time.Duration
	TrendingMaxMarkets   int

	// Wallet preference
	WalletPolicy          string // Built-in policy name: "phantom-first" or "metamask-first"
	WalletPreferenceOrder string // Comma-separated explicit order, overrides WalletPolicy
	WalletPolicyFile      string // YAML file with named policies

	// Session
	SessionStore       string // "sqlite" or "memory"
	SessionDBPath      string
	DevLoginEnabled    bool
	SessionSyncTimeout time.Duration

	// Trade journal
	JournalMode  string // "console", "postgres" or "none"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Backend defaults
		APIBaseURL:   strings.TrimRight(getEnvOrDefault("MARKETVIEW_API_URL", "http://localhost:3001/api"), "/"),
		WSURL:        getEnvOrDefault("MARKETVIEW_WS_URL", "ws://localhost:3001"),
		APITimeout:   getDurationOrDefault("API_TIMEOUT", 15*time.Second),
		APIRateLimit: getFloat64OrDefault("API_RATE_LIMIT", 20),
		APIRateBurst: getIntOrDefault("API_RATE_BURST", 10),

		// WebSocket defaults
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 1000),

		// Cache defaults
		MarketCacheTTL:     getDurationOrDefault("MARKET_CACHE_TTL", 15*time.Second),
		MarketListCacheTTL: getDurationOrDefault("MARKET_LIST_CACHE_TTL", 30*time.Second),
		OrderbookCacheTTL:  getDurationOrDefault("ORDERBOOK_CACHE_TTL", 5*time.Second),

		// Discovery defaults
		TrendingPollInterval: getDurationOrDefault("TRENDING_POLL_INTERVAL", 2*time.Minute),
		TrendingMaxMarkets:   getIntOrDefault("TRENDING_MAX_MARKETS", 20),

		// Wallet defaults
		WalletPolicy:          getEnvOrDefault("WALLET_PREFERENCE_POLICY", "phantom-first"),
		WalletPreferenceOrder: os.Getenv("WALLET_PREFERENCE_ORDER"),
		WalletPolicyFile:      os.Getenv("WALLET_POLICY_FILE"),

		// Session defaults
		SessionStore:       getEnvOrDefault("SESSION_STORE", "sqlite"),
		SessionDBPath:      getEnvOrDefault("SESSION_DB_PATH", "marketview.db"),
		DevLoginEnabled:    getBoolOrDefault("DEV_LOGIN_ENABLED", true),
		SessionSyncTimeout: getDurationOrDefault("SESSION_SYNC_TIMEOUT", 20*time.Second),

		// Journal defaults
		JournalMode:  getEnvOrDefault("JOURNAL_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "marketview"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "marketview"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "marketview"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.APIBaseURL == "" {
		return fmt.Errorf("MARKETVIEW_API_URL cannot be empty")
	}

	if c.WSURL == "" {
		return fmt.Errorf("MARKETVIEW_WS_URL cannot be empty")
	}

	if c.APIRateLimit <= 0 {
		return fmt.Errorf("API_RATE_LIMIT must be positive, got %f", c.APIRateLimit)
	}

	if c.APIRateBurst < 1 {
		return fmt.Errorf("API_RATE_BURST must be >= 1, got %d", c.APIRateBurst)
	}

	if c.WSReconnectBackoffMult < 1.0 {
		return fmt.Errorf("WS_RECONNECT_BACKOFF_MULTIPLIER must be >= 1.0, got %f", c.WSReconnectBackoffMult)
	}

	if c.WalletPolicy != "phantom-first" && c.WalletPolicy != "metamask-first" && c.WalletPolicyFile == "" {
		return fmt.Errorf("WALLET_PREFERENCE_POLICY must be 'phantom-first' or 'metamask-first', got %q", c.WalletPolicy)
	}

	if c.SessionStore != "sqlite" && c.SessionStore != "memory" {
		return fmt.Errorf("SESSION_STORE must be 'sqlite' or 'memory', got %q", c.SessionStore)
	}

	if c.SessionStore == "sqlite" && c.SessionDBPath == "" {
		return fmt.Errorf("SESSION_DB_PATH cannot be empty when SESSION_STORE is sqlite")
	}

	switch c.JournalMode {
	case "console", "postgres", "none":
	default:
		return fmt.Errorf("JOURNAL_MODE must be 'console', 'postgres' or 'none', got %q", c.JournalMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
