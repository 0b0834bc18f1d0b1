package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:3001/api" {
		t.Errorf("expected default API URL, got %q", cfg.APIBaseURL)
	}

	if cfg.WSReconnectInitialDelay != time.Second {
		t.Errorf("expected 1s initial reconnect delay, got %v", cfg.WSReconnectInitialDelay)
	}

	if cfg.WSReconnectMaxDelay != 30*time.Second {
		t.Errorf("expected 30s max reconnect delay, got %v", cfg.WSReconnectMaxDelay)
	}

	if cfg.WalletPolicy != "phantom-first" {
		t.Errorf("expected phantom-first policy, got %q", cfg.WalletPolicy)
	}

	if !cfg.DevLoginEnabled {
		t.Error("expected dev login enabled by default")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Run("trailing_slash_trimmed", func(t *testing.T) {
		os.Setenv("MARKETVIEW_API_URL", "https://api.example.com/api/")
		t.Cleanup(func() {
			os.Unsetenv("MARKETVIEW_API_URL")
		})

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.APIBaseURL != "https://api.example.com/api" {
			t.Errorf("expected trimmed URL, got %q", cfg.APIBaseURL)
		}
	})

	t.Run("invalid_duration_falls_back", func(t *testing.T) {
		os.Setenv("MARKET_CACHE_TTL", "soon")
		t.Cleanup(func() {
			os.Unsetenv("MARKET_CACHE_TTL")
		})

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.MarketCacheTTL != 15*time.Second {
			t.Errorf("expected fallback 15s, got %v", cfg.MarketCacheTTL)
		}
	})

	t.Run("dev_login_disabled", func(t *testing.T) {
		os.Setenv("DEV_LOGIN_ENABLED", "false")
		t.Cleanup(func() {
			os.Unsetenv("DEV_LOGIN_ENABLED")
		})

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.DevLoginEnabled {
			t.Error("expected dev login disabled")
		}
	})
}

func validConfig() *Config {
	return &Config{
		HTTPPort:               "8080",
		APIBaseURL:             "http://localhost:3001/api",
		WSURL:                  "ws://localhost:3001",
		APIRateLimit:           20,
		APIRateBurst:           10,
		WSReconnectBackoffMult: 2.0,
		WalletPolicy:           "phantom-first",
		SessionStore:           "memory",
		JournalMode:            "none",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty-port",
			mutate:  func(c *Config) { c.HTTPPort = "" },
			wantErr: true,
			errMsg:  "HTTP_PORT cannot be empty",
		},
		{
			name:    "unknown-policy",
			mutate:  func(c *Config) { c.WalletPolicy = "coinbase-first" },
			wantErr: true,
			errMsg:  `WALLET_PREFERENCE_POLICY must be 'phantom-first' or 'metamask-first', got "coinbase-first"`,
		},
		{
			name: "unknown-policy-with-file",
			mutate: func(c *Config) {
				c.WalletPolicy = "coinbase-first"
				c.WalletPolicyFile = "policies.yaml"
			},
			wantErr: false,
		},
		{
			name:    "unknown-session-store",
			mutate:  func(c *Config) { c.SessionStore = "redis" },
			wantErr: true,
			errMsg:  `SESSION_STORE must be 'sqlite' or 'memory', got "redis"`,
		},
		{
			name: "sqlite-without-path",
			mutate: func(c *Config) {
				c.SessionStore = "sqlite"
				c.SessionDBPath = ""
			},
			wantErr: true,
			errMsg:  "SESSION_DB_PATH cannot be empty when SESSION_STORE is sqlite",
		},
		{
			name:    "unknown-journal",
			mutate:  func(c *Config) { c.JournalMode = "kafka" },
			wantErr: true,
			errMsg:  `JOURNAL_MODE must be 'console', 'postgres' or 'none', got "kafka"`,
		},
		{
			name:    "zero-rate-limit",
			mutate:  func(c *Config) { c.APIRateLimit = 0 },
			wantErr: true,
			errMsg:  "API_RATE_LIMIT must be positive, got 0.000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				} else if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestNewLogger_WithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketview.log")
	os.Setenv("LOG_FILE", path)
	t.Cleanup(func() {
		os.Unsetenv("LOG_FILE")
	})

	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	logger.Info("logger-test")
	_ = logger.Sync()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}

	if info.Size() == 0 {
		t.Error("expected log file to contain data")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	os.Setenv("LOG_LEVEL", "loud")
	t.Cleanup(func() {
		os.Unsetenv("LOG_LEVEL")
	})

	_, err := NewLogger()
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
}
