package config

import (
	"fmt"
	"net/url"
	"strings"

	"reflectledger/native/fees"
)

// Validate checks the configuration without building an engine.
func (c *Config) Validate() error {
	if _, err := c.EngineParams(); err != nil {
		return err
	}
	if _, err := fees.NewSchedule(c.Fees.Rates.rates(), c.Fees.Minimums.rates(), c.Fees.CapBps); err != nil {
		return fmt.Errorf("config: fees: %w", err)
	}
	if _, err := c.schedule(); err != nil {
		return err
	}
	if c.Gateway.RateLimitPerSecond < 0 || c.Gateway.Burst < 0 {
		return fmt.Errorf("config: gateway rate limit must not be negative")
	}
	if raw := strings.TrimSpace(c.Webhook.URL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("config: webhook.URL must be an http(s) URL")
		}
		if strings.TrimSpace(c.Webhook.Secret) == "" {
			return fmt.Errorf("config: webhook.Secret required when webhook.URL is set")
		}
	}
	return nil
}
