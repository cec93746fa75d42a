package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the client needs to reach its backends and run
// the checkout flow.
type Config struct {
	// StateDir holds the identity token, the local insight cache and the
	// config file itself.
	StateDir string `json:"state_dir"`

	APIBaseURL     string `json:"api_base_url"`
	HTTPTimeoutSec int    `json:"http_timeout_sec"`

	// PaymentVariant picks the checkout design once: "hosted" (default) or
	// "inline".
	PaymentVariant string `json:"payment_variant"`
	// CallbackAddr is where the payment-return server listens. Port 0 lets
	// the OS choose.
	CallbackAddr string `json:"callback_addr"`

	SearchDebounceMs int `json:"search_debounce_ms"`
	HistoryLimit     int `json:"history_limit"`

	Debug bool `json:"debug"`
}

const (
	VariantHosted = "hosted"
	VariantInline = "inline"
)

// DefaultConfig builds the configuration from defaults, a .env file if one
// is present, and environment variable overrides.
func DefaultConfig() *Config {
	cfg := DefaultConfigWithRoot(defaultStateDir())

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

// DefaultConfigWithRoot returns the defaults rooted at the given state dir.
func DefaultConfigWithRoot(stateDir string) *Config {
	return &Config{
		StateDir:         stateDir,
		APIBaseURL:       "http://localhost:8000",
		HTTPTimeoutSec:   30,
		PaymentVariant:   VariantHosted,
		CallbackAddr:     "127.0.0.1:0",
		SearchDebounceMs: 300,
		HistoryLimit:     20,
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "stockinsight")
	}
	currentDir, _ := os.Getwd()
	return filepath.Join(currentDir, ".stockinsight")
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("INSIGHT_STATE_DIR"); val != "" {
		c.StateDir = val
	}
	if val := os.Getenv("INSIGHT_API_URL"); val != "" {
		c.APIBaseURL = val
	}
	if val := os.Getenv("INSIGHT_HTTP_TIMEOUT_SEC"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.HTTPTimeoutSec = v
		}
	}
	if val := os.Getenv("INSIGHT_PAYMENT_VARIANT"); val != "" {
		c.PaymentVariant = val
	}
	if val := os.Getenv("INSIGHT_CALLBACK_ADDR"); val != "" {
		c.CallbackAddr = val
	}
	if val := os.Getenv("INSIGHT_SEARCH_DEBOUNCE_MS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.SearchDebounceMs = v
		}
	}
	if val := os.Getenv("INSIGHT_HISTORY_LIMIT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.HistoryLimit = v
		}
	}
	if val := os.Getenv("INSIGHT_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state dir is required")
	}
	if _, err := url.ParseRequestURI(c.APIBaseURL); err != nil {
		return fmt.Errorf("invalid api base url %q: %w", c.APIBaseURL, err)
	}
	if c.HTTPTimeoutSec <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.PaymentVariant != VariantHosted && c.PaymentVariant != VariantInline {
		return fmt.Errorf("payment variant must be %q or %q", VariantHosted, VariantInline)
	}
	if c.SearchDebounceMs < 0 {
		return fmt.Errorf("search debounce must not be negative")
	}
	return nil
}

// HTTPTimeout returns the configured API timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// SearchDebounce returns the configured autocomplete quiet period.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMs) * time.Millisecond
}

// InsightDBPath is the location of the local insight cache.
func (c *Config) InsightDBPath() string {
	return filepath.Join(c.StateDir, "insights.db")
}

// EnsureDirectories creates the state dir if it does not exist.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory %s: %w", c.StateDir, err)
	}
	return nil
}
