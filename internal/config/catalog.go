package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CatalogConfig configures the product catalog client.
// A zero timeout means requests wait as long as the catalog takes.
type CatalogConfig struct {
	BaseURL        string               `koanf:"baseurl"`
	Timeout        time.Duration        `koanf:"timeout"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

type CircuitBreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
}

const defaultCatalogBaseURL = "https://fakestoreapi.com"

// String returns a string representation of the CatalogConfig.
func (c *CatalogConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Catalog ---\n")
	b.WriteString(fmt.Sprintf("  baseurl: %s\n", c.BaseURL))
	b.WriteString(fmt.Sprintf("  timeout: %v\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  circuitbreaker.enabled: %t\n", c.CircuitBreaker.Enabled))
	b.WriteString(fmt.Sprintf("  circuitbreaker.consecutivefailures: %d\n", c.CircuitBreaker.ConsecutiveFailures))
	b.WriteString(fmt.Sprintf("  circuitbreaker.opentimeout: %v\n", c.CircuitBreaker.OpenTimeout))
	return b.String()
}

func (c *CatalogConfig) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = defaultCatalogBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("catalog base URL must be an absolute http(s) URL: %s", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("catalog timeout must not be negative: %v", c.Timeout)
	}
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.ConsecutiveFailures == 0 {
			return fmt.Errorf("circuitbreaker.consecutivefailures must be greater than 0")
		}
		if c.CircuitBreaker.OpenTimeout <= 0 {
			return fmt.Errorf("circuitbreaker.opentimeout must be greater than 0")
		}
	}
	return nil
}
