package config

import (
	"time"

	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/ifuryst/outreach/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Notify    NotifyConfig    `yaml:"notify"`
	Auth      AuthConfig      `yaml:"auth"`
	Stats     StatsConfig     `yaml:"stats"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
	// TickInterval is how often the loop looks for due jobs.
	TickInterval string `yaml:"tick_interval"`
	// RunInterval is the gap between two cycles of the same job.
	RunInterval       string        `yaml:"run_interval"`
	Workers           int           `yaml:"workers"`
	CallTimeout       string        `yaml:"call_timeout"`
	SearchLimit       int           `yaml:"search_limit"`
	DefaultDailyLimit int           `yaml:"default_daily_limit"`
	Pacing            PacingConfig  `yaml:"pacing"`
}

type PacingConfig struct {
	Default string `yaml:"default"`
	Reddit  string `yaml:"reddit"`
	Twitter string `yaml:"twitter"`
}

type PlatformsConfig struct {
	Reddit  RedditConfig  `yaml:"reddit"`
	Twitter TwitterConfig `yaml:"twitter"`
}

type RedditConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ClientID     string  `yaml:"client_id"`
	ClientSecret string  `yaml:"client_secret"`
	Username     string  `yaml:"username"`
	Password     string  `yaml:"password"`
	UserAgent    string  `yaml:"user_agent"`
	TimeFilter   string  `yaml:"time_filter"`
	RequestsPerS float64 `yaml:"requests_per_second"`
}

type TwitterConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BearerToken  string  `yaml:"bearer_token"`
	UserToken    string  `yaml:"user_token"`
	Username     string  `yaml:"username"`
	Language     string  `yaml:"language"`
	RequestsPerS float64 `yaml:"requests_per_second"`
}

type GeminiConfig struct {
	APIKey           string `yaml:"api_key"`
	Model            string `yaml:"model"`
	MaxMessageLength int    `yaml:"max_message_length"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	AMQP     AMQPConfig     `yaml:"amqp"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

type AMQPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TOTPSecret string `yaml:"totp_secret"`
	JWTSecret  string `yaml:"jwt_secret"`
	SessionTTL string `yaml:"session_ttl"`
}

type StatsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Interval      string `yaml:"interval"`
	RetentionDays int    `yaml:"retention_days"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5334
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}

	if cfg.Scheduler.TickInterval == "" {
		cfg.Scheduler.TickInterval = "60s"
	}
	if cfg.Scheduler.RunInterval == "" {
		cfg.Scheduler.RunInterval = "1h"
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Scheduler.CallTimeout == "" {
		cfg.Scheduler.CallTimeout = "30s"
	}
	if cfg.Scheduler.SearchLimit <= 0 {
		cfg.Scheduler.SearchLimit = 100
	}
	if cfg.Scheduler.DefaultDailyLimit <= 0 {
		cfg.Scheduler.DefaultDailyLimit = 20
	}
	if cfg.Scheduler.Pacing.Default == "" {
		cfg.Scheduler.Pacing.Default = "10s"
	}
	if cfg.Scheduler.Pacing.Reddit == "" {
		cfg.Scheduler.Pacing.Reddit = "10s"
	}
	if cfg.Scheduler.Pacing.Twitter == "" {
		cfg.Scheduler.Pacing.Twitter = "15s"
	}

	if cfg.Platforms.Reddit.UserAgent == "" {
		cfg.Platforms.Reddit.UserAgent = "outreach-bot/0.1"
	}
	if cfg.Platforms.Reddit.TimeFilter == "" {
		cfg.Platforms.Reddit.TimeFilter = "month"
	}
	if cfg.Platforms.Reddit.RequestsPerS <= 0 {
		cfg.Platforms.Reddit.RequestsPerS = 1
	}
	if cfg.Platforms.Twitter.Language == "" {
		cfg.Platforms.Twitter.Language = "en"
	}
	if cfg.Platforms.Twitter.RequestsPerS <= 0 {
		cfg.Platforms.Twitter.RequestsPerS = 0.5
	}

	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-flash"
	}
	if cfg.Gemini.MaxMessageLength <= 0 {
		cfg.Gemini.MaxMessageLength = 300
	}

	if cfg.Notify.AMQP.Exchange == "" {
		cfg.Notify.AMQP.Exchange = "outreach.events"
	}

	if cfg.Auth.SessionTTL == "" {
		cfg.Auth.SessionTTL = "24h"
	}

	if cfg.Stats.Interval == "" {
		cfg.Stats.Interval = "15m"
	}
	if cfg.Stats.RetentionDays <= 0 {
		cfg.Stats.RetentionDays = 90
	}
}

// Duration parses value and falls back to def when it is empty or invalid.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return def
	}
	return d
}
