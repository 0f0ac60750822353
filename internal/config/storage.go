package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

const (
	defaultStorageKey = "cart-products"
	defaultSQLitePath = "cart.db"
)

// StorageConfig selects and configures the key-value store the cart is persisted to.
type StorageConfig struct {
	Driver string         `koanf:"driver"`
	Key    string         `koanf:"key"`
	SQLite SQLiteConfig   `koanf:"sqlite"`
	Redis  RedisConfig    `koanf:"redis"`
	DB     DatabaseConfig `koanf:"database"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	Addr    string        `koanf:"addr"`
	DB      int           `koanf:"db"`
	Timeout time.Duration `koanf:"timeout"`
}

type DatabaseConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the StorageConfig.
func (c *StorageConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	b.WriteString(fmt.Sprintf("  key: %s\n", c.Key))
	switch c.Driver {
	case DriverSQLite:
		b.WriteString(fmt.Sprintf("  sqlite.path: %s\n", c.SQLite.Path))
	case DriverRedis:
		b.WriteString(fmt.Sprintf("  redis.addr: %s\n", c.Redis.Addr))
		b.WriteString(fmt.Sprintf("  redis.db: %d\n", c.Redis.DB))
	case DriverPostgres:
		b.WriteString(fmt.Sprintf("  database.url: %s\n", maskURL(c.DB.URL)))
		b.WriteString(fmt.Sprintf("  database.timeout: %s\n", c.DB.Timeout))
	}
	return b.String()
}

func (c *StorageConfig) Validate() error {
	if c.Key == "" {
		c.Key = defaultStorageKey
	}
	switch c.Driver {
	case DriverMemory:
	case "", DriverSQLite:
		c.Driver = DriverSQLite
		if c.SQLite.Path == "" {
			c.SQLite.Path = defaultSQLitePath
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is not configured")
		}
		if c.Redis.Timeout <= 0 {
			return fmt.Errorf("redis timeout is not configured")
		}
	case DriverPostgres:
		return c.DB.Validate()
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Driver)
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("database URL is not configured")
	}
	if !isValidPostgresURL(c.URL) {
		return fmt.Errorf("database URL must start with 'postgres://': %s", maskURL(c.URL))
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("database timeout is not configured")
	}
	return nil
}

// isValidPostgresURL checks if the provided URL is a valid PostgreSQL URL
func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	// Mask the URL by replacing the username and password with "****"
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		return "****@" + parts[1]
	}
	return "****"
}
