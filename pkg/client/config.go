package client

import (
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the client configuration. It is validated once in New and
// immutable for the client's lifetime.
type Config struct {
	// BaseURL is the account-specific API root, e.g.
	// "https://ws-use.brightpearl.com/public-api/acme". No trailing
	// slash; New strips one if present.
	BaseURL string

	// AppRef is the Brightpearl application reference header value.
	AppRef string

	// AccountToken is the Brightpearl account token header value. It
	// also namespaces the cache store so two accounts never collide.
	AccountToken string

	// Timeout bounds each individual transport call.
	Timeout time.Duration

	// MaxRetries is the total attempt budget per logical call,
	// including the first attempt.
	MaxRetries int

	// RateLimit is the minimum interval between requests.
	RateLimit time.Duration

	// CacheDir is where response cache entries are persisted.
	CacheDir string

	// HTTPClient overrides the transport, mainly for tests. The
	// configured Timeout is applied to it.
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration with the defaults the upstream
// integration uses.
func DefaultConfig(baseURL, appRef, accountToken string) Config {
	return Config{
		BaseURL:      baseURL,
		AppRef:       appRef,
		AccountToken: accountToken,
		Timeout:      15 * time.Second,
		MaxRetries:   3,
		RateLimit:    1 * time.Second,
		CacheDir:     "_bp_cache_",
	}
}

// ConfigFromEnv builds a configuration from the environment, loading a
// .env file first if one exists. Required variables:
//
//	BRIGHTPEARL_API_URL, BRIGHTPEARL_APP_REF, BRIGHTPEARL_ACCOUNT_TOKEN
//
// Optional overrides: BRIGHTPEARL_TIMEOUT_SECONDS,
// BRIGHTPEARL_MAX_RETRIES, BRIGHTPEARL_RATE_LIMIT_SECONDS,
// BRIGHTPEARL_CACHE_DIR.
func ConfigFromEnv() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig(
		os.Getenv("BRIGHTPEARL_API_URL"),
		os.Getenv("BRIGHTPEARL_APP_REF"),
		os.Getenv("BRIGHTPEARL_ACCOUNT_TOKEN"),
	)

	if v := os.Getenv("BRIGHTPEARL_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("BRIGHTPEARL_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("BRIGHTPEARL_RATE_LIMIT_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit = time.Duration(f * float64(time.Second))
		}
	}
	if v := os.Getenv("BRIGHTPEARL_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	return cfg
}

// validate checks the construction invariants. It fails fast: the first
// violation is returned as a *ConfigError.
func (c *Config) validate() error {
	if c.BaseURL == "" {
		return &ConfigError{Field: "base_url", Reason: "is required"}
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &ConfigError{Field: "base_url", Reason: "must be a valid http(s) URL"}
	}
	if c.AppRef == "" {
		return &ConfigError{Field: "app_ref", Reason: "is required"}
	}
	if c.AccountToken == "" {
		return &ConfigError{Field: "account_token", Reason: "is required"}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Field: "timeout", Reason: "must be positive"}
	}
	if c.MaxRetries <= 0 {
		return &ConfigError{Field: "max_retries", Reason: "must be positive"}
	}
	if c.RateLimit <= 0 {
		return &ConfigError{Field: "rate_limit", Reason: "must be positive"}
	}

	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}
