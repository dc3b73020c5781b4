package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"woodslot/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Booking    BookingConfig    `yaml:"booking"`
	Admin      AdminConfig      `yaml:"admin"`
	Mail       MailConfig       `yaml:"mail"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Events     EventsConfig     `yaml:"events"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

type HTTPConfig struct {
	Port           int             `yaml:"port"`
	PublicURL      string          `yaml:"public_url"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	TrustedProxies []string        `yaml:"trusted_proxies"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BookingConfig struct {
	DailyQuota int `yaml:"daily_quota"`
	WindowDays int `yaml:"window_days"`
}

type AdminConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	Seed       AdminSeed     `yaml:"seed"`
}

// AdminSeed describes the administrator created at startup. PasswordHash
// takes precedence over Password.
type AdminSeed struct {
	FirstName    string `yaml:"first_name"`
	PasswordHash string `yaml:"password_hash"`
	Password     string `yaml:"password"`
}

type MailConfig struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Subject  string `yaml:"subject"`
}

// SchedulerConfig drives the weekly purge and hourly refresh, which run
// unless Disabled is set.
type SchedulerConfig struct {
	Disabled    bool   `yaml:"disabled"`
	PurgeSpec   string `yaml:"purge_spec"`
	RefreshSpec string `yaml:"refresh_spec"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type EventsConfig struct {
	AMQPURL string `yaml:"amqp_url"`
	Queue   string `yaml:"queue"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// Load reads the YAML file at configPath, expanding ${VAR} references from the
// environment (and from .env when present).
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Admin.JWTSecret == "" || c.Admin.JWTSecret == "CHANGE_ME" {
		return errors.New("admin jwt_secret is required")
	}
	if len(c.Admin.JWTSecret) < 16 {
		return errors.New("admin jwt_secret must be at least 16 characters")
	}

	if c.Booking.DailyQuota <= 0 {
		return fmt.Errorf("booking daily_quota must be positive, got %d", c.Booking.DailyQuota)
	}

	if c.Mail.SMTPHost != "" && c.Mail.From == "" {
		return errors.New("mail.from is required when mail.smtp_host is set")
	}

	if c.App.Timezone != "" {
		if _, err := time.LoadLocation(c.App.Timezone); err != nil {
			return fmt.Errorf("invalid app timezone %q: %w", c.App.Timezone, err)
		}
	}

	return nil
}

// Location returns the configured time zone, falling back to the server's
// local zone.
func (c *Config) Location() *time.Location {
	if c.App.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "woodslot"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3001
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.DailyQuota == 0 {
		c.Booking.DailyQuota = models.DefaultDailyQuota
	}
	if c.Booking.WindowDays == 0 {
		c.Booking.WindowDays = models.DefaultWindowDays
	}
	if c.Admin.SessionTTL == 0 {
		c.Admin.SessionTTL = models.DefaultSessionTTL
	}
	if c.Mail.SMTPPort == 0 {
		c.Mail.SMTPPort = 587
	}
	if c.Mail.Subject == "" {
		c.Mail.Subject = models.DefaultNotificationSubject
	}
	if c.Scheduler.PurgeSpec == "" {
		c.Scheduler.PurgeSpec = models.DefaultPurgeSpec
	}
	if c.Scheduler.RefreshSpec == "" {
		c.Scheduler.RefreshSpec = models.DefaultRefreshSpec
	}
	if c.Events.Queue == "" {
		c.Events.Queue = "woodslot.events"
	}
	for i, origin := range c.HTTP.AllowedOrigins {
		c.HTTP.AllowedOrigins[i] = strings.TrimRight(strings.TrimSpace(origin), "/")
	}
}
