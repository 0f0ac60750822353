package config

import (
	"fmt"
	"strings"
	"time"
)

// NATSConfig configures the cart event publisher. An empty URL disables publishing.
type NATSConfig struct {
	Url     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
	Subject string        `koanf:"subject"`
}

const defaultCartSubject = "cart.updated"

// Enabled reports whether cart events should be published.
func (c *NATSConfig) Enabled() bool {
	return c.Url != ""
}

// String returns a string representation of the NATS configuration.
func (c *NATSConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS ---\n")
	b.WriteString(fmt.Sprintf("  url: %s\n", c.Url))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  subject: %s\n", c.Subject))
	return b.String()
}

func (c *NATSConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("nats dial timeout is not configured")
	}
	if c.Subject == "" {
		c.Subject = defaultCartSubject
	}
	return nil
}
