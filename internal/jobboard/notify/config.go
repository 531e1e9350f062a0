// internal/jobboard/notify/config.go
package notify

import (
	"time"

	"job-board/internal/common/config"
)

type Config struct {
	EmailEnabled  bool
	EventsEnabled bool
	FromEmail     string
	TopicARN      string
	Timeout       time.Duration
}

func LoadConfig(cfg config.NotificationConfig) *Config {
	c := &Config{
		EmailEnabled:  cfg.Email.Enabled,
		EventsEnabled: cfg.Events.Enabled && cfg.Events.TopicARN != "",
		FromEmail:     cfg.Email.FromEmail,
		TopicARN:      cfg.Events.TopicARN,
		Timeout:       config.GetDuration(cfg.Timeout),
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}
