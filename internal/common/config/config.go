// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App             AppConfig             `mapstructure:"app"`
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Transports      TransportConfig       `mapstructure:"transports"`
	Personalization PersonalizationConfig `mapstructure:"personalization"`
	Dispatch        DispatchConfig        `mapstructure:"dispatch"`
	Scheduler       SchedulerConfig       `mapstructure:"scheduler"`
	Realtime        RealtimeConfig        `mapstructure:"realtime"`
	Auth            AuthConfig            `mapstructure:"auth"`
	Workflow        WorkflowConfig        `mapstructure:"workflow"`
	Audit           AuditConfig           `mapstructure:"audit"`
	Logging         LoggingConfig         `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	ListenAddress  string `mapstructure:"listen_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	ReadTimeout    int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int    `mapstructure:"write_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
	Enabled    bool     `mapstructure:"enabled"`
}

// --- Channel Transport Config ---

type TransportConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	Push struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"push"`
}

// --- Personalization Config ---

type PersonalizationConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
	Enabled bool   `mapstructure:"enabled"`
}

// --- Dispatch Config ---

type DispatchConfig struct {
	ChannelTimeout int `mapstructure:"channel_timeout"` // milliseconds, per channel send
	MaxChannels    int `mapstructure:"max_channels"`
}

// --- Scheduler Config ---

type SchedulerConfig struct {
	BatchFlushInterval int    `mapstructure:"batch_flush_interval"` // seconds
	DelayedPollInterval int   `mapstructure:"delayed_poll_interval"` // seconds
	DigestHour         int    `mapstructure:"digest_hour"`         // local hour for daily/weekly digests
	WeeklyDigestDay    string `mapstructure:"weekly_digest_day"`   // e.g. "Monday"
}

// --- Realtime Config ---

type RealtimeConfig struct {
	SendBufferSize int `mapstructure:"send_buffer_size"`
	AuthTimeout    int `mapstructure:"auth_timeout"`  // milliseconds for the authenticate frame
	WriteTimeout   int `mapstructure:"write_timeout"` // milliseconds per connection write
}

// --- Auth Config ---

// AuthConfig points the realtime token resolver at an OpenID Connect
// provider. When disabled, tokens are taken verbatim as recipient IDs
// (development only).
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Realm   string `mapstructure:"realm"`
}

// --- Workflow (Zeebe) Config ---

type WorkflowConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BrokerAddress string `mapstructure:"broker_address"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// --- Audit Config ---

type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
