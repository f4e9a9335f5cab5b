package confluence

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvURL      = "CONFLUENCE_URL"
	EnvUsername = "CONFLUENCE_USERNAME"
	EnvAPIToken = "CONFLUENCE_API_TOKEN"
	EnvTimeout  = "CONFLUENCE_TIMEOUT"
)

// Config holds connection settings for the Confluence REST API.
type Config struct {
	// URL is the site base URL, e.g. "https://example.atlassian.net/wiki".
	URL string

	// Username and APIToken are sent as HTTP basic auth credentials.
	Username string
	APIToken string

	// Timeout bounds a single HTTP request.
	// Default: 30s
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int

	// RetryDelay is the base backoff delay; it doubles on each retry.
	// Default: 1s
	RetryDelay time.Duration

	// MaxRetryDelay caps a single backoff delay, including Retry-After hints.
	// Default: 60s
	MaxRetryDelay time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithURL sets the site base URL.
func WithURL(url string) ConfigOption {
	return func(c *Config) {
		c.URL = url
	}
}

// WithCredentials sets the basic auth username and API token.
func WithCredentials(username, token string) ConfigOption {
	return func(c *Config) {
		c.Username = username
		c.APIToken = token
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetries sets the retry count and the backoff bounds.
func WithRetries(maxRetries int, delay, maxDelay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
		c.MaxRetryDelay = maxDelay
	}
}

// DefaultConfig returns a Config with default timeouts and retry policy and
// no site or credentials.
func DefaultConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		MaxRetries:    3,
		RetryDelay:    time.Second,
		MaxRetryDelay: 60 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ConfigFromEnv builds a Config from the CONFLUENCE_* environment variables,
// then applies opts. CONFLUENCE_TIMEOUT is a number of seconds.
func ConfigFromEnv(opts ...ConfigOption) (*Config, error) {
	cfg := DefaultConfig()
	cfg.URL = os.Getenv(EnvURL)
	cfg.Username = os.Getenv(EnvUsername)
	cfg.APIToken = os.Getenv(EnvAPIToken)
	if raw := strings.TrimSpace(os.Getenv(EnvTimeout)); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("confluence config: invalid %s %q", EnvTimeout, raw)
		}
		cfg.Timeout = time.Duration(seconds) * time.Second
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// IsConfigured reports whether the site and credentials are all present.
func (c *Config) IsConfigured() bool {
	return c.URL != "" && c.Username != "" && c.APIToken != ""
}

// Validate checks that the configuration is complete and normalizes the URL.
func (c *Config) Validate() error {
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")

	var missing []string
	if c.URL == "" {
		missing = append(missing, EnvURL)
	}
	if c.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if c.APIToken == "" {
		missing = append(missing, EnvAPIToken)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("confluence config: Timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("confluence config: MaxRetries cannot be negative")
	}
	return nil
}
