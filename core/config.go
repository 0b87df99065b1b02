package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultServiceName      = "formchimp"
	DefaultActivityChannel  = "fb-mailchimp"
	DefaultMailchimpBaseURL = "https://{dc}.api.mailchimp.com/3.0"
)

type MailchimpConfig struct {
	BaseURL          string        `koanf:"base_url" mapstructure:"base_url"`
	Timeout          time.Duration `koanf:"timeout" mapstructure:"timeout"`
	MaxResponseBytes int64         `koanf:"max_response_bytes" mapstructure:"max_response_bytes"`
	PageSize         int           `koanf:"page_size" mapstructure:"page_size"`
}

type ActivityConfig struct {
	RetentionTTL time.Duration `koanf:"retention_ttl" mapstructure:"retention_ttl"`
	RowCap       int           `koanf:"row_cap" mapstructure:"row_cap"`
}

type Config struct {
	ServiceName     string          `koanf:"service_name" mapstructure:"service_name"`
	ActivityChannel string          `koanf:"activity_channel" mapstructure:"activity_channel"`
	Mailchimp       MailchimpConfig `koanf:"mailchimp" mapstructure:"mailchimp"`
	Activity        ActivityConfig  `koanf:"activity" mapstructure:"activity"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:     DefaultServiceName,
		ActivityChannel: DefaultActivityChannel,
		Mailchimp: MailchimpConfig{
			BaseURL:          DefaultMailchimpBaseURL,
			Timeout:          30 * time.Second,
			MaxResponseBytes: 10 << 20,
			PageSize:         1000,
		},
		Activity: ActivityConfig{
			RetentionTTL: 90 * 24 * time.Hour,
			RowCap:       10000,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.ActivityChannel) == "" {
		return fmt.Errorf("core: activity_channel is required")
	}
	if strings.TrimSpace(c.Mailchimp.BaseURL) == "" {
		return fmt.Errorf("core: mailchimp.base_url is required")
	}
	if c.Mailchimp.Timeout < 0 {
		return fmt.Errorf("core: mailchimp.timeout must not be negative")
	}
	if c.Mailchimp.PageSize < 0 || c.Mailchimp.PageSize > 1000 {
		return fmt.Errorf("core: mailchimp.page_size must be between 0 and 1000")
	}
	if c.Activity.RowCap < 0 {
		return fmt.Errorf("core: activity.row_cap must not be negative")
	}
	return nil
}
