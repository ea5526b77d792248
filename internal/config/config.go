// Package config handles configuration loading and management for pit.
// It supports an XDG user config file, a project .env file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrUnknownKey is returned by Set and Unset for keys pit does not use.
var ErrUnknownKey = errors.New("unknown config key")

// Config holds all configuration for pit.
type Config struct {
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Linear    LinearConfig    `mapstructure:"linear"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// DefaultsConfig holds defaults applied to new tasks.
type DefaultsConfig struct {
	Agent   string `mapstructure:"agent"`
	BaseRef string `mapstructure:"base_ref"`
}

// LinearConfig holds Linear API settings.
type LinearConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// GitHubConfig holds GitHub API settings.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
}

// DashboardConfig holds dashboard display settings.
type DashboardConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// defaults lists every key pit reads with its built-in value.
var defaults = map[string]any{
	"defaults.agent":             "claude",
	"defaults.base_ref":          "",
	"linear.api_key":             "",
	"github.token":               "",
	"dashboard.refresh_interval": "2s",
	"telemetry.otlp_endpoint":    "",
	"telemetry.insecure":         false,
	"log.level":                  "info",
}

// envAliases are unprefixed environment variables honored alongside PIT_*.
var envAliases = map[string]string{
	"linear.api_key": "LINEAR_API_KEY",
	"github.token":   "GITHUB_TOKEN",
}

// Keys returns every known key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is one pit reads.
func IsKnownKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Load reads configuration. Precedence, highest first:
//  1. PIT_* environment variables (and LINEAR_API_KEY, GITHUB_TOKEN)
//  2. <projectRoot>/.pit/.env, when projectRoot is not empty
//  3. the user config file
//  4. built-in defaults
func Load(projectRoot string) (*Config, error) {
	v, err := newViper(UserConfigPath())
	if err != nil {
		return nil, err
	}
	if projectRoot != "" {
		if err := applyDotEnv(v, filepath.Join(projectRoot, ".pit", ".env")); err != nil {
			return nil, err
		}
	}
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file, ignoring the
// environment's project .env.
func LoadFromPath(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return unmarshal(v)
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	v.SetEnvPrefix("PIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range envAliases {
		if err := v.BindEnv(append([]string{key}, envNames(key)...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return v, nil
}

// applyDotEnv layers KEY=value pairs from a project .env file under the
// real environment. Only variables that map to known keys are used, and
// the process environment is left untouched.
func applyDotEnv(v *viper.Viper, path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	for _, key := range Keys() {
		names := envNames(key)
		if envSet(names) {
			continue
		}
		for _, name := range names {
			if val := vars[name]; val != "" {
				v.Set(key, val)
				break
			}
		}
	}
	return nil
}

func envSet(names []string) bool {
	for _, name := range names {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// envNames lists the environment variables that override key.
func envNames(key string) []string {
	names := []string{"PIT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	if alias, ok := envAliases[key]; ok {
		names = append(names, alias)
	}
	return names
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Linear.APIKey = os.ExpandEnv(cfg.Linear.APIKey)
	cfg.GitHub.Token = os.ExpandEnv(cfg.GitHub.Token)
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// Default returns a Config with built-in values.
func Default() *Config {
	return &Config{
		Defaults:  DefaultsConfig{Agent: "claude"},
		Dashboard: DashboardConfig{RefreshInterval: 2 * time.Second},
		Log:       LogConfig{Level: "info"},
	}
}

// UserConfigDir returns the XDG config directory for pit.
func UserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "pit")
	}
	return filepath.Join(home, ".config", "pit")
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	return filepath.Join(UserConfigDir(), "config.yaml")
}
