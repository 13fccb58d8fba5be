package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Slack    SlackConfig    `yaml:"slack"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	AppWatch AppWatchConfig `yaml:"appwatch"`
}

// DatabaseConfig: empty Host switches both binaries to the in-memory store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// KafkaConfig: empty Host means notifications go straight to the webhooks.
type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	NotificationsTopicName string `yaml:"notifications_topic_name"`
	ConsumerGroup          string `yaml:"consumer_group"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SlackConfig struct {
	UpdatesWebhookURL string `yaml:"updates_webhook_url"`
	SubmitWebhookURL  string `yaml:"submit_webhook_url"`
	ReportWebhookURL  string `yaml:"report_webhook_url"`
	SubmitChannelID   string `yaml:"submit_channel_id"`
	SigningSecret     string `yaml:"signing_secret"`
	// UpdatesChannelName is only used in reply texts, e.g. "#app-checker-updates".
	UpdatesChannelName string `yaml:"updates_channel_name"`
	// PingMode is one of "", "channel", "here", "everyone".
	PingMode string `yaml:"ping_mode"`
}

type CatalogConfig struct {
	// Mode: "itunes" (default) | "fake".
	Mode               string `yaml:"mode"`
	LookupURL          string `yaml:"lookup_url"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	// FakeLiveIDs is only read in fake mode.
	FakeLiveIDs []string `yaml:"fake_live_ids"`
}

type AppWatchConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	WorkerHTTPAddr string `yaml:"worker_http_addr"`
	APIKey         string `yaml:"api_key"`
	TimeZone       string `yaml:"time_zone"`

	Regions      []string `yaml:"regions"`
	DailyRegions []string `yaml:"daily_regions"`

	HourlySweepMinutes   int    `yaml:"hourly_sweep_minutes"`
	DailySweepAt         string `yaml:"daily_sweep_at"`    // "HH:MM" local time
	MonthlyReportAt      string `yaml:"monthly_report_at"` // "HH:MM" local time
	MaturationDays       int    `yaml:"maturation_days"`
	RecheckAfterHours    int    `yaml:"recheck_after_hours"`
	CheckCacheTTLSeconds int    `yaml:"check_cache_ttl_seconds"`
	LocalCacheSizeMB     int    `yaml:"local_cache_size_mb"`

	Report ReportConfig `yaml:"report"`
}

type ReportConfig struct {
	Owner           string  `yaml:"owner"`
	SubmitterPayout float64 `yaml:"submitter_payout"`
	OwnerPayout     float64 `yaml:"owner_payout"`
	Currency        string  `yaml:"currency"`
}

// LoadConfig reads a YAML file; ${VAR} references are expanded from the environment.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config Config
	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal YAML")
	}

	return &config, nil
}

// PostgresConnString returns "" when no database host is configured.
func (c *Config) PostgresConnString() string {
	if c.Database.Host == "" {
		return ""
	}
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Username, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.DBName, sslMode)
}

func (c *Config) KafkaBrokers() []string {
	if c.Kafka.Host == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s:%d", c.Kafka.Host, c.Kafka.Port)}
}

func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) NotificationsTopic() string {
	if c.Kafka.NotificationsTopicName == "" {
		return "appwatch.notifications"
	}
	return c.Kafka.NotificationsTopicName
}
