package storeapi

import (
	"fmt"
	"net/url"
	"time"
)

const (
	defaultTimeout              = 15 * time.Second
	defaultRetryInitialInterval = 200 * time.Millisecond
)

// Config represents the configuration for the storefront API client
type Config struct {
	// BaseURL is the API root, e.g. https://shop.example.com/api/v1
	BaseURL string

	// Timeout bounds every single HTTP attempt
	Timeout time.Duration

	// MaxRetries is the number of extra attempts for idempotent requests
	MaxRetries int

	// RetryInitialInterval is the first backoff delay between attempts
	RetryInitialInterval time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q is not absolute", ErrInvalidConfig, c.BaseURL)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = defaultRetryInitialInterval
	}
	return c
}
