package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	WMS       WMSConfig
	Queue     QueueConfig
	Scheduler SchedulerConfig
	HTTP      HTTPConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// WMSConfig holds remote WMS connection and rate-limit settings
type WMSConfig struct {
	BaseURL        string
	Token          string
	CustomerCode   string
	WmsCode        string
	RequestTimeout time.Duration

	// RemoteCustomerID is the pre-provisioned customer id on the WMS side,
	// required for outbound order export
	RemoteCustomerID string
	// DefaultShippingMethodID is used when no method mapping matches
	DefaultShippingMethodID string

	// Rate limiting
	HourlyQuota        int
	BurstQuota         int
	RemainingThreshold int
	MaxWait            time.Duration
	AdaptiveRatio      float64
	MaxRetries         int
}

// QueueConfig holds webhook queue worker settings
type QueueConfig struct {
	BatchSize          int
	MaxAttempts        int
	StuckTimeout       time.Duration
	ProcessedRetention time.Duration
	FailedRetention    time.Duration
	ReprocessCooldown  time.Duration
}

// SchedulerConfig holds background loop settings
type SchedulerConfig struct {
	Enabled             bool
	WorkerInterval      time.Duration
	MaintenanceInterval time.Duration
	BatchSyncInterval   time.Duration
	BatchLimit          int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with WMS_SYNC_ prefix (e.g., WMS_SYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("WMS_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		WMS: WMSConfig{
			BaseURL:                 v.GetString("wms.base_url"),
			Token:                   v.GetString("wms.token"),
			CustomerCode:            v.GetString("wms.customer_code"),
			WmsCode:                 v.GetString("wms.wms_code"),
			RequestTimeout:          v.GetDuration("wms.request_timeout"),
			RemoteCustomerID:        v.GetString("wms.remote_customer_id"),
			DefaultShippingMethodID: v.GetString("wms.default_shipping_method_id"),
			HourlyQuota:             v.GetInt("wms.hourly_quota"),
			BurstQuota:              v.GetInt("wms.burst_quota"),
			RemainingThreshold:      v.GetInt("wms.remaining_threshold"),
			MaxWait:                 v.GetDuration("wms.max_wait"),
			AdaptiveRatio:           v.GetFloat64("wms.adaptive_ratio"),
			MaxRetries:              v.GetInt("wms.max_retries"),
		},
		Queue: QueueConfig{
			BatchSize:          v.GetInt("queue.batch_size"),
			MaxAttempts:        v.GetInt("queue.max_attempts"),
			StuckTimeout:       v.GetDuration("queue.stuck_timeout"),
			ProcessedRetention: v.GetDuration("queue.processed_retention"),
			FailedRetention:    v.GetDuration("queue.failed_retention"),
			ReprocessCooldown:  v.GetDuration("queue.reprocess_cooldown"),
		},
		Scheduler: SchedulerConfig{
			Enabled:             v.GetBool("scheduler.enabled"),
			WorkerInterval:      v.GetDuration("scheduler.worker_interval"),
			MaintenanceInterval: v.GetDuration("scheduler.maintenance_interval"),
			BatchSyncInterval:   v.GetDuration("scheduler.batch_sync_interval"),
			BatchLimit:          v.GetInt("scheduler.batch_limit"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "wms-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "wms_sync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.WMS.RequestTimeout == 0 {
		cfg.WMS.RequestTimeout = 30 * time.Second
	}
	if cfg.WMS.HourlyQuota == 0 {
		cfg.WMS.HourlyQuota = 1000
	}
	if cfg.WMS.BurstQuota == 0 {
		cfg.WMS.BurstQuota = 60
	}
	if cfg.WMS.RemainingThreshold == 0 {
		cfg.WMS.RemainingThreshold = 5
	}
	if cfg.WMS.MaxWait == 0 {
		cfg.WMS.MaxWait = 30 * time.Second
	}
	if cfg.WMS.AdaptiveRatio == 0 {
		cfg.WMS.AdaptiveRatio = 0.8
	}
	if cfg.WMS.MaxRetries == 0 {
		cfg.WMS.MaxRetries = 3
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = 25
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.StuckTimeout == 0 {
		cfg.Queue.StuckTimeout = 5 * time.Minute
	}
	if cfg.Queue.ProcessedRetention == 0 {
		cfg.Queue.ProcessedRetention = 168 * time.Hour
	}
	if cfg.Queue.FailedRetention == 0 {
		cfg.Queue.FailedRetention = 168 * time.Hour
	}
	if cfg.Queue.ReprocessCooldown == 0 {
		cfg.Queue.ReprocessCooldown = 5 * time.Minute
	}
	if cfg.Scheduler.WorkerInterval == 0 {
		cfg.Scheduler.WorkerInterval = 10 * time.Second
	}
	if cfg.Scheduler.MaintenanceInterval == 0 {
		cfg.Scheduler.MaintenanceInterval = time.Hour
	}
	if cfg.Scheduler.BatchSyncInterval == 0 {
		cfg.Scheduler.BatchSyncInterval = 15 * time.Minute
	}
	if cfg.Scheduler.BatchLimit == 0 {
		cfg.Scheduler.BatchLimit = 50
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must not be negative")
	}
	if c.WMS.AdaptiveRatio <= 0 || c.WMS.AdaptiveRatio > 1 {
		return fmt.Errorf("wms.adaptive_ratio must be in (0, 1]")
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive")
	}
	if c.IsProduction() {
		if c.WMS.BaseURL == "" {
			return fmt.Errorf("wms.base_url is required in production")
		}
		if c.WMS.Token == "" {
			return fmt.Errorf("wms.token is required in production")
		}
	}
	return nil
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the Redis address in host:port form
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
