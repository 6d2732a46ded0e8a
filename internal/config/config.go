package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Environment string `toml:"environment"`

	LogsPath    string `toml:"logs_path"`
	LogLevel    string `toml:"log_level"`
	LogToStdout bool   `toml:"log_to_stdout"`

	SentryEnabled  bool `toml:"sentry_enabled"`
	TracingEnabled bool `toml:"tracing_enabled"`

	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`

	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort int    `toml:"prometheus_metrics_port"`

	LoginRateLimitAllowedPerMin int `toml:"login_rate_limit_allowed_per_min"`

	CompletionAPIURL string `toml:"completion_api_url"`
	CompletionModel  string `toml:"completion_model"`

	// session token validity, in days
	SessionTTLDays int `toml:"session_ttl_days"`
}

type perEnvConfig struct {
	Development Config `toml:"development"`
	Production  Config `toml:"production"`
}

// Load reads the TOML config file at path and returns the section
// for the given environment ("development" or "production").
func Load(environment, path string) (*Config, error) {
	configData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var allConf perEnvConfig
	if err := toml.Unmarshal(configData, &allConf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	var conf Config
	switch environment {
	case "development":
		conf = allConf.Development
	case "production":
		conf = allConf.Production
	default:
		return nil, fmt.Errorf("unknown environment: %s", environment)
	}

	conf.Environment = environment
	if conf.SessionTTLDays <= 0 {
		conf.SessionTTLDays = 7
	}

	return &conf, nil
}
