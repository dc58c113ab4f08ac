// Package config provides configuration management for mailscore.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/mailscore/internal/types"
)

// Config is the complete mailscore configuration.
type Config struct {
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	AddressBook AddressBookConfig `mapstructure:"addressbook"`
	Hooks       HooksConfig       `mapstructure:"hooks"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

// ScoringConfig holds score thresholds and rule sources.
type ScoringConfig struct {
	// Scores at or below ThresholdDelete mark the message deleted.
	ThresholdDelete int `mapstructure:"threshold_delete"`
	// Scores at or below ThresholdRead mark the message read.
	ThresholdRead int `mapstructure:"threshold_read"`
	// Scores at or above ThresholdFlag mark the message flagged.
	ThresholdFlag int `mapstructure:"threshold_flag"`

	// RulesFile is a command file ("score", "unscore", hooks, ...) read after Rules.
	RulesFile string           `mapstructure:"rules_file"`
	Rules     []types.RuleSpec `mapstructure:"rules"`

	Sort    string `mapstructure:"sort"`
	SortAux string `mapstructure:"sort_aux"`
}

// AddressBookConfig holds the address data patterns consult.
type AddressBookConfig struct {
	Groups     map[string]GroupConfig `mapstructure:"groups"`
	Aliases    map[string][]string    `mapstructure:"aliases"`
	Lists      []string               `mapstructure:"lists"`
	Subscribe  []string               `mapstructure:"subscribe"`
	Alternates []string               `mapstructure:"alternates"`
}

// GroupConfig lists exact member addresses and member patterns.
type GroupConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Patterns  []string `mapstructure:"patterns"`
}

// HooksConfig holds pattern hooks.
type HooksConfig struct {
	// DefaultHook expands plain-text save and fcc hook patterns; %s is replaced.
	DefaultHook string           `mapstructure:"default_hook"`
	Hooks       []types.HookSpec `mapstructure:"hooks"`
}

// ServerConfig holds configuration for the gRPC scoring API.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxConnections int           `mapstructure:"max_connections"`
}

// LoggingConfig selects the log destination, level and format.
type LoggingConfig struct {
	Output string `mapstructure:"output"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig locates the score result store. An empty URL disables it.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			ThresholdDelete: -1,
			ThresholdRead:   -1,
			ThresholdFlag:   types.ScoreMax,
			Sort:            "date",
		},
		Hooks: HooksConfig{
			DefaultHook: "(~f %s !~P) | (~P ~C %s)",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50061,
			MetricsAddr:    ":9464",
			RequestTimeout: 30 * time.Second,
			MaxConnections: 1000,
		},
		Logging: LoggingConfig{
			Output: "stderr",
			Level:  "info",
			Format: "text",
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports MS_HMAC_SECRET (single) and MS_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	if val := os.Getenv("MS_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("MS_HMAC_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Numbered secrets keep old and new keys valid during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("MS_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check MS_HMAC_SECRET and MS_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}
	return secretID, secret, nil
}
