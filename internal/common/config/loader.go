// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if absent.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "notification-engine"
	}
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = ":9090"
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 20
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if cfg.Database.Elasticsearch.AuditIndex == "" {
		cfg.Database.Elasticsearch.AuditIndex = "delivery-audit"
	}
	if cfg.Dispatch.ChannelTimeout == 0 {
		cfg.Dispatch.ChannelTimeout = 10000
	}
	if cfg.Dispatch.MaxChannels == 0 {
		cfg.Dispatch.MaxChannels = 2
	}
	if cfg.Personalization.Timeout == 0 {
		cfg.Personalization.Timeout = 3000
	}
	if cfg.Scheduler.BatchFlushInterval == 0 {
		cfg.Scheduler.BatchFlushInterval = 300
	}
	if cfg.Scheduler.DelayedPollInterval == 0 {
		cfg.Scheduler.DelayedPollInterval = 30
	}
	if cfg.Scheduler.DigestHour == 0 {
		cfg.Scheduler.DigestHour = 9
	}
	if cfg.Scheduler.WeeklyDigestDay == "" {
		cfg.Scheduler.WeeklyDigestDay = "Monday"
	}
	if cfg.Realtime.SendBufferSize == 0 {
		cfg.Realtime.SendBufferSize = 256
	}
	if cfg.Realtime.AuthTimeout == 0 {
		cfg.Realtime.AuthTimeout = 10000
	}
	if cfg.Realtime.WriteTimeout == 0 {
		cfg.Realtime.WriteTimeout = 5000
	}
	if cfg.Workflow.MaxJobsActive == 0 {
		cfg.Workflow.MaxJobsActive = 10
	}
	if cfg.Workflow.Timeout == 0 {
		cfg.Workflow.Timeout = 30000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Transports.Email.Enabled && cfg.Transports.Email.FromEmail == "" {
		return fmt.Errorf("transports.email.from_email is required when email is enabled")
	}
	if cfg.Workflow.Enabled && cfg.Workflow.BrokerAddress == "" {
		return fmt.Errorf("workflow.broker_address is required when the workflow worker is enabled")
	}
	if cfg.Personalization.Enabled && cfg.Personalization.BaseURL == "" {
		return fmt.Errorf("personalization.base_url is required when personalization is enabled")
	}
	if cfg.Auth.Enabled && cfg.Auth.BaseURL == "" {
		return fmt.Errorf("auth.base_url is required when auth is enabled")
	}
	return nil
}

// ChannelTimeout returns the per-channel dispatch timeout as a duration.
func (d DispatchConfig) ChannelTimeoutDuration() time.Duration {
	return time.Duration(d.ChannelTimeout) * time.Millisecond
}

func (s SchedulerConfig) BatchFlushIntervalDuration() time.Duration {
	return time.Duration(s.BatchFlushInterval) * time.Second
}

func (s SchedulerConfig) DelayedPollIntervalDuration() time.Duration {
	return time.Duration(s.DelayedPollInterval) * time.Second
}

func (r RealtimeConfig) AuthTimeoutDuration() time.Duration {
	return time.Duration(r.AuthTimeout) * time.Millisecond
}

func (r RealtimeConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(r.WriteTimeout) * time.Millisecond
}
