// internal/workers/notification-dispatch/config.go
package notificationdispatch

import "time"

type Config struct {
	MaxJobsActive int
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxJobsActive: 10,
		Timeout:       30 * time.Second,
	}
}
