package types

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/netxfw/netxmap/internal/feed"
)

// validate is the shared struct validator; it is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	return v
}

// Validate checks the configuration for errors.
// Validate 检查配置是否存在错误。
func (c *GlobalConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Feed.Validate(); err != nil {
		return fmt.Errorf("feed config error: %w", err)
	}
	if err := c.GeoIP.Validate(); err != nil {
		return fmt.Errorf("geoip config error: %w", err)
	}
	if err := c.Web.Validate(); err != nil {
		return fmt.Errorf("web config error: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config error: %w", err)
	}
	if err := c.Relay.Validate(); err != nil {
		return fmt.Errorf("relay config error: %w", err)
	}
	return nil
}

// Validate checks that the poll interval is positive and the filter compiles.
func (c *FeedConfig) Validate() error {
	if c.PollDuration() <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %q", c.PollInterval)
	}
	if c.Filter != "" {
		if _, err := feed.CompileFilter(c.Filter); err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
	}
	return nil
}

func (c *GeoIPConfig) Validate() error {
	if c.LookupTimeoutDuration() <= 0 {
		return fmt.Errorf("lookup_timeout must be positive, got %q", c.LookupTimeout)
	}
	return nil
}

func (c *WebConfig) Validate() error {
	if c.WriteTimeoutDuration() <= 0 {
		return fmt.Errorf("write_timeout must be positive, got %q", c.WriteTimeout)
	}
	if c.PingIntervalDuration() <= 0 {
		return fmt.Errorf("ping_interval must be positive, got %q", c.PingInterval)
	}
	return nil
}

func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServerEnabled && c.Port == 0 {
		return fmt.Errorf("port is required when server_enabled is true")
	}
	if c.PushEnabled {
		if c.PushGatewayAddr == "" {
			return fmt.Errorf("push_gateway_addr is required when push_enabled is true")
		}
		if c.PushIntervalDuration() <= 0 {
			return fmt.Errorf("push_interval must be positive, got %q", c.PushInterval)
		}
	}
	if c.TextfileEnabled && c.TextfilePath == "" {
		return fmt.Errorf("textfile_path is required when textfile_enabled is true")
	}
	return nil
}

func (c *RelayConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Subject == "" {
		return fmt.Errorf("subject is required when relay is enabled")
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid url %q", c.URL)
	}
	return nil
}
