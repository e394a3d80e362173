package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server / service identity
	App AppConfig `mapstructure:"app"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis (cache entries + rate-limit counters)
	Redis RedisConfig `mapstructure:"redis"`

	// NATS (click event fan-out)
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Short code generation and URL validation
	Shortener ShortenerConfig `mapstructure:"shortener"`

	// Per-endpoint-class request limits
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`

	// Click recording pipeline
	Clicks ClicksConfig `mapstructure:"clicks"`
}

type AppConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Port    int    `mapstructure:"port"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

type ShortenerConfig struct {
	CodeLength        int      `mapstructure:"code_length"`
	MaxAttempts       int      `mapstructure:"max_attempts"`
	MaxURLLength      int      `mapstructure:"max_url_length"`
	DefaultExpiryDays int      `mapstructure:"default_expiry_days"`
	ReservedCodes     []string `mapstructure:"reserved_codes"`
	CacheTTL          string   `mapstructure:"cache_ttl"`
	NegativeCacheTTL  string   `mapstructure:"negative_cache_ttl"`
	SweepInterval     string   `mapstructure:"sweep_interval"`
}

// RateLimitClass configures one endpoint class.
type RateLimitClass struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

type RateLimitConfig struct {
	Shorten   RateLimitClass `mapstructure:"shorten"`
	Redirect  RateLimitClass `mapstructure:"redirect"`
	Analytics RateLimitClass `mapstructure:"analytics"`
	Admin     RateLimitClass `mapstructure:"admin"`
}

type ClicksConfig struct {
	QueueSize         int    `mapstructure:"queue_size"`
	BatchSize         int    `mapstructure:"batch_size"`
	BatchInterval     string `mapstructure:"batch_interval"`
	DropPolicy        string `mapstructure:"drop_policy"` // "newest" or "oldest"
	DrainOnShutdown   bool   `mapstructure:"drain_on_shutdown"`
	ReconcileInterval string `mapstructure:"reconcile_interval"`
	PublishStream     bool   `mapstructure:"publish_stream"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.port", 8080)

	v.SetDefault("shortener.code_length", 6)
	v.SetDefault("shortener.max_attempts", 5)
	v.SetDefault("shortener.max_url_length", 2048)
	v.SetDefault("shortener.default_expiry_days", 365)
	v.SetDefault("shortener.reserved_codes", []string{"api", "admin", "health", "metrics", "static"})
	v.SetDefault("shortener.cache_ttl", "1h")
	v.SetDefault("shortener.negative_cache_ttl", "1m")
	v.SetDefault("shortener.sweep_interval", "10m")

	v.SetDefault("ratelimit.shorten.limit", 10)
	v.SetDefault("ratelimit.shorten.window", "1m")
	v.SetDefault("ratelimit.redirect.limit", 60)
	v.SetDefault("ratelimit.redirect.window", "1m")
	v.SetDefault("ratelimit.analytics.limit", 30)
	v.SetDefault("ratelimit.analytics.window", "1m")
	v.SetDefault("ratelimit.admin.limit", 10)
	v.SetDefault("ratelimit.admin.window", "1m")

	v.SetDefault("clicks.queue_size", 10000)
	v.SetDefault("clicks.batch_size", 100)
	v.SetDefault("clicks.batch_interval", "2s")
	v.SetDefault("clicks.drop_policy", "newest")
	v.SetDefault("clicks.drain_on_shutdown", true)
	v.SetDefault("clicks.reconcile_interval", "5m")
	v.SetDefault("clicks.publish_stream", false)
}

func bindEnvVars(v *viper.Viper) {
	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// App
	v.BindEnv("app.base_url", "BASE_URL")
	v.BindEnv("app.port", "PORT")
}

// Duration parses a duration string from config, falling back when the value
// is empty or malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
