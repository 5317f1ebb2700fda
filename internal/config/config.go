// Package config provides configuration management for Warden.
//
// Configuration is loaded from:
// 1. config.yaml in the Warden config directory (optional)
// 2. Environment variables (WARDEN_ prefix, e.g. WARDEN_CONTROLLER_URL)
// 3. Default values
//
// CLI flags are bound on top by the cli package.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Controller ControllerConfig `mapstructure:"controller"`
	Bulk       BulkConfig       `mapstructure:"bulk"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`

	// ConfigDir is where session.json and groups.json live. Resolved at
	// load time, not read from the config file itself.
	ConfigDir string `mapstructure:"-"`
}

// ControllerConfig contains local controller connection settings.
type ControllerConfig struct {
	URL      string `mapstructure:"url"`
	Site     string `mapstructure:"site"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// BulkConfig contains bulk action executor settings.
type BulkConfig struct {
	// Concurrency bounds simultaneous member actions in one bulk operation.
	Concurrency int `mapstructure:"concurrency"`
}

// ServerConfig contains serve-mode HTTP settings.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AuthTokenHash is a bcrypt hash of the bearer token required by serve
	// mode. Empty disables auth (loopback-only setups). Generate with
	// `warden hash-token`.
	AuthTokenHash string `mapstructure:"auth_token_hash"`

	// CORSOrigins lists allowed origins for browser callers; empty
	// disables CORS handling.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// Load reads configuration from file and environment variables.
// configDir overrides the default directory when non-empty.
func Load(configDir string) (*Config, error) {
	dir, err := resolveConfigDir(configDir)
	if err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	// Environment variable override: controller.url → WARDEN_CONTROLLER_URL
	v.SetEnvPrefix("warden")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigDir = dir
	cfg.Controller.URL = strings.TrimRight(cfg.Controller.URL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Controller.URL != "" {
		u, err := url.Parse(c.Controller.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("controller.url %q is not a valid URL", c.Controller.URL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("controller.url scheme must be http or https, got %q", u.Scheme)
		}
	}
	if c.Controller.Site == "" {
		return fmt.Errorf("controller.site must not be empty")
	}
	if c.Bulk.Concurrency < 1 {
		return fmt.Errorf("bulk.concurrency must be at least 1, got %d", c.Bulk.Concurrency)
	}
	return nil
}

// RequireController verifies the settings needed for any authenticated
// call are present. Kept out of Validate so offline group management
// works without controller credentials.
func (c *Config) RequireController() error {
	if c.Controller.URL == "" {
		return fmt.Errorf("controller.url is not configured (set WARDEN_CONTROLLER_URL or --url)")
	}
	if c.Controller.Username == "" || c.Controller.Password == "" {
		return fmt.Errorf("controller credentials are not configured (set WARDEN_CONTROLLER_USERNAME / WARDEN_CONTROLLER_PASSWORD)")
	}
	return nil
}

func resolveConfigDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv("WARDEN_CONFIG_DIR"); env != "" {
		return env, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "warden"), nil
}

func setDefaults(v *viper.Viper) {
	// Controller
	v.SetDefault("controller.url", "")
	v.SetDefault("controller.site", "default")
	v.SetDefault("controller.username", "")
	v.SetDefault("controller.password", "")
	v.SetDefault("controller.timeout", "30s")
	v.SetDefault("controller.insecure_skip_verify", false)

	// Bulk executor
	v.SetDefault("bulk.concurrency", 4)

	// Serve mode
	v.SetDefault("server.listen", "127.0.0.1:8787")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.auth_token_hash", "")
	v.SetDefault("server.cors_origins", []string{})

	// Log
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
}
