// Package config defines the application's root configuration.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	mu       sync.RWMutex
)

// DefaultUserAgent identifies the library when no override is configured.
const DefaultUserAgent = "WWW-Mechanize-Go/1.0"

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Network NetworkConfig `mapstructure:"network"`
	Browse  BrowseConfig  `mapstructure:"browse"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// NetworkConfig holds settings for the HTTP layer.
type NetworkConfig struct {
	RequestTimeout  time.Duration     `mapstructure:"request_timeout"`
	MaxRedirects    int               `mapstructure:"max_redirects"`
	IgnoreTLSErrors bool              `mapstructure:"ignore_tls_errors"`
	ProxyURL        string            `mapstructure:"proxy_url"`
	Headers         map[string]string `mapstructure:"headers"`
}

// BrowseConfig holds settings for the browsing session itself.
type BrowseConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	Quiet     bool   `mapstructure:"quiet"`
}

// SetDefaults registers default values so the app can run with a minimal config.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "mech")
	v.SetDefault("network.request_timeout", 60*time.Second)
	v.SetDefault("network.max_redirects", 10)
	v.SetDefault("browse.user_agent", DefaultUserAgent)
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Network.MaxRedirects < 0 {
		return fmt.Errorf("network.max_redirects must be >= 0, got %d", c.Network.MaxRedirects)
	}
	if c.Network.RequestTimeout < 0 {
		return fmt.Errorf("network.request_timeout must be >= 0, got %s", c.Network.RequestTimeout)
	}
	switch strings.ToLower(c.Logger.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logger.format must be 'console' or 'json', got %q", c.Logger.Format)
	}
	return nil
}

// NewDefaultConfig returns a configuration populated with defaults, bypassing viper.
// Used by tests and library consumers that do not run the CLI.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; unmarshalling them cannot fail.
		panic(fmt.Sprintf("config: failed to unmarshal defaults: %v", err))
	}
	return &cfg
}

// Set stores the configuration globally.
func Set(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}

// Get returns the loaded configuration instance, or defaults if none was loaded.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return NewDefaultConfig()
	}
	return instance
}
