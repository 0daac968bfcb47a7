// internal/workers/preference-update/config.go
package preferenceupdate

import "time"

type Config struct {
	MaxJobsActive int
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxJobsActive: 10,
		Timeout:       10 * time.Second,
	}
}
