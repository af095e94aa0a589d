package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	Host           string `mapstructure:"host"`
	RequestTimeout int    `mapstructure:"request_timeout" validate:"gte=0"` // Seconds per API request, 0 disables
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// StorefrontConfig describes the remote REST backend
type StorefrontConfig struct {
	BaseURL      string   `mapstructure:"base_url" validate:"required,url"`
	FallbackURLs []string `mapstructure:"fallback_urls" validate:"dive,url"`
	APIPrefix    string   `mapstructure:"api_prefix"`
	HealthPath   string   `mapstructure:"health_path" validate:"required"`

	Timeout              int `mapstructure:"timeout" validate:"gte=1"`         // Seconds, whole HTTP exchange
	RequestTimeout       int `mapstructure:"request_timeout" validate:"gte=1"` // Seconds, one logical request
	MaxRetries           int `mapstructure:"max_retries" validate:"gte=0"`
	MaxRequestsPerSecond int `mapstructure:"max_requests_per_second" validate:"gte=0"` // 0 disables limiting
	PageSize             int `mapstructure:"page_size" validate:"gte=1,lte=1000"`
}

// Hosts returns the primary base URL followed by the fallbacks.
func (s StorefrontConfig) Hosts() []string {
	return append([]string{s.BaseURL}, s.FallbackURLs...)
}

func (s StorefrontConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// BreakerConfig tunes the circuit breaker in front of the storefront API
type BreakerConfig struct {
	MaxRequests  uint32  `mapstructure:"max_requests"`
	Interval     int     `mapstructure:"interval"` // Seconds
	Timeout      int     `mapstructure:"timeout"`  // Seconds open before half-open
	FailureRatio float64 `mapstructure:"failure_ratio" validate:"gte=0,lte=1"`
	MinRequests  uint32  `mapstructure:"min_requests"`
}

// AuditConfig controls the batch category audit
type AuditConfig struct {
	MaxWorkers       int `mapstructure:"max_workers" validate:"gte=1"`
	CategoryPageSize int `mapstructure:"category_page_size" validate:"gte=1"`
	MaxRetries       int `mapstructure:"max_retries" validate:"gte=0"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group" validate:"required"`
	MinIdleTime   int    `mapstructure:"min_idle_time" validate:"gte=1"`  // Seconds
	GenerationTTL int    `mapstructure:"generation_ttl" validate:"gte=1"` // Seconds a view's generation is remembered
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads config.yaml from the given directories (the working directory
// when none are given) with environment variable overrides, e.g.
// STOREFRONT_BASE_URL. A missing file is not an error: defaults and the
// environment are enough to run.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.Storefront.BaseURL = strings.TrimRight(config.Storefront.BaseURL, "/")
	for i, u := range config.Storefront.FallbackURLs {
		config.Storefront.FallbackURLs[i] = strings.TrimRight(u, "/")
	}

	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.request_timeout", 120)

	v.SetDefault("storefront.base_url", "http://localhost:5000")
	v.SetDefault("storefront.fallback_urls", []string{})
	v.SetDefault("storefront.api_prefix", "/api")
	v.SetDefault("storefront.health_path", "/health")
	v.SetDefault("storefront.timeout", 30)
	v.SetDefault("storefront.request_timeout", 15)
	v.SetDefault("storefront.max_retries", 2)
	v.SetDefault("storefront.max_requests_per_second", 20)
	v.SetDefault("storefront.page_size", 100)

	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", 60)
	v.SetDefault("breaker.timeout", 30)
	v.SetDefault("breaker.failure_ratio", 0.5)
	v.SetDefault("breaker.min_requests", 5)

	v.SetDefault("audit.max_workers", 4)
	v.SetDefault("audit.category_page_size", 100)
	v.SetDefault("audit.max_retries", 5)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "storefront")
	v.SetDefault("database.user", "storefront_user")
	v.SetDefault("database.password", "storefront_pass")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "storefront_audit")
	v.SetDefault("redis.min_idle_time", 120)
	v.SetDefault("redis.generation_ttl", 3600)
}
