package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2beens/liftrecords/internal/records"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// storage
	PostgresHost    string `toml:"postgres_host"`
	PostgresPort    string `toml:"postgres_port"`
	PostgresDBName  string `toml:"postgres_db_name"`
	RedisHost       string `toml:"redis_host"`
	RedisPort       string `toml:"redis_port"`
	ExerciseCacheMB int    `toml:"exercise_cache_mb"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// http surface
	AllowedOrigins  []string `toml:"allowed_origins"`
	RateLimitPerMin int      `toml:"rate_limit_per_min"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"`

	// records
	Tolerance  float64 `toml:"tolerance"`
	MaxCascade int     `toml:"max_cascade"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no [%s] section in config", env)
	}
	return cfg, nil
}

// Load reads the TOML config file and returns the section for env,
// with defaults applied for unset values.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid [%s] config: %w", env, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
	if c.ExerciseCacheMB == 0 {
		c.ExerciseCacheMB = 8
	}
	if c.RateLimitPerMin == 0 {
		c.RateLimitPerMin = 120
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.Tolerance == 0 {
		c.Tolerance = records.DefaultTolerance
	}
	if c.MaxCascade == 0 {
		c.MaxCascade = records.DefaultMaxCascade
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDBName == "" {
		errs = append(errs, errors.New("postgres host, port and db name must be set"))
	}
	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("negative tolerance: %v", c.Tolerance))
	}
	if c.MaxCascade < 0 {
		errs = append(errs, fmt.Errorf("negative max cascade: %d", c.MaxCascade))
	}
	if c.RateLimitPerMin < 0 {
		errs = append(errs, fmt.Errorf("negative rate limit: %d", c.RateLimitPerMin))
	}
	return errors.Join(errs...)
}

// RedisEnabled reports whether a redis server is configured. Without it,
// write routes are not rate limited.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != "" && c.RedisPort != ""
}
