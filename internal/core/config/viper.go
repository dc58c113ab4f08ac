package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWithOverrides(configPath)
}

// Override sets a key with flag precedence before decoding. Used by the CLI
// for flags such as --db-url and --log-level.
type Override struct {
	Key   string
	Value any
}

// LoadConfigWithOverrides is LoadConfig with flag values applied on top.
func LoadConfigWithOverrides(configPath string, overrides ...Override) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	// Bind environment variables with MS_ prefix
	v.SetEnvPrefix("MS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	for _, o := range overrides {
		v.Set(o.Key, o.Value)
	}
	return decode(v)
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("scoring.threshold_delete", d.Scoring.ThresholdDelete)
	v.SetDefault("scoring.threshold_read", d.Scoring.ThresholdRead)
	v.SetDefault("scoring.threshold_flag", d.Scoring.ThresholdFlag)
	v.SetDefault("scoring.rules_file", "")
	v.SetDefault("scoring.sort", d.Scoring.Sort)
	v.SetDefault("scoring.sort_aux", "")
	v.SetDefault("hooks.default_hook", d.Hooks.DefaultHook)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.max_connections", d.Server.MaxConnections)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("database.url", "")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateConfig checks port range, positive timeouts and known log settings.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", cfg.Logging.Format)
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}
	for i, r := range cfg.Scoring.Rules {
		if r.Pattern == "" || r.Value == "" {
			return fmt.Errorf("scoring.rules[%d]: pattern and value are required", i)
		}
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets. InConfig
// looks at the file only; IsSet would also see MS_HMAC_SECRET.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use MS_HMAC_SECRET environment variable)")
	}
	return nil
}
