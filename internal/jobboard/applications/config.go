// internal/jobboard/applications/config.go
package applications

import (
	"time"

	"job-board/internal/common/config"
)

type Config struct {
	ResumeBucket   string
	SignedURLTTL   time.Duration
	MaxResumeBytes int64
}

func LoadConfig(cfg config.StorageConfig) *Config {
	c := &Config{
		ResumeBucket:   cfg.ResumeBucket,
		SignedURLTTL:   config.GetSeconds(cfg.SignedURLTTL),
		MaxResumeBytes: cfg.MaxUploadBytes,
	}
	if c.ResumeBucket == "" {
		c.ResumeBucket = "resume"
	}
	if c.SignedURLTTL <= 0 {
		c.SignedURLTTL = 60 * time.Second
	}
	return c
}
