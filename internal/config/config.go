package config

import (
	"strings"

	"github.com/abgdnv/gocart/internal/platform/configloader"
)

var _ configloader.Validator = (*Config)(nil)
var _ configloader.Validator = (*CLIConfig)(nil)

// Config is the configuration of the cart HTTP service.
type Config struct {
	HTTPServer HTTPConfig      `koanf:"server"`
	Log        LogConfig       `koanf:"log"`
	PProf      PProfConfig     `koanf:"pprof"`
	Shutdown   ShutdownConfig  `koanf:"shutdown"`
	Catalog    CatalogConfig   `koanf:"catalog"`
	Storage    StorageConfig   `koanf:"storage"`
	Nats       NATSConfig      `koanf:"nats"`
	Telemetry  TelemetryConfig `koanf:"telemetry"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Catalog.String())
	b.WriteString(c.Storage.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Nats.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	return nil
}

// CLIConfig is the configuration of the cartctl command line tool.
// It shares the catalog and storage sections with the service.
type CLIConfig struct {
	Log     LogConfig     `koanf:"log"`
	Catalog CatalogConfig `koanf:"catalog"`
	Storage StorageConfig `koanf:"storage"`
}

func (c *CLIConfig) String() string {
	var b strings.Builder
	b.WriteString(c.Catalog.String())
	b.WriteString(c.Storage.String())
	b.WriteString(c.Log.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *CLIConfig) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	return c.Storage.Validate()
}
