// Root configuration for the browser control plane.
package config

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Server  ServerConfig  `mapstructure:"server"`
	Browser BrowserConfig `mapstructure:"browser"`
	Input   InputConfig   `mapstructure:"input"`
	Stealth StealthConfig `mapstructure:"stealth"`
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

// ServerConfig holds settings for the HTTP control API.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the host:port pair the API server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BrowserConfig holds settings for the embedded browser engine.
type BrowserConfig struct {
	WindowWidth      int      `mapstructure:"window_width"`
	WindowHeight     int      `mapstructure:"window_height"`
	Headless         bool     `mapstructure:"headless"`
	UserAgent        string   `mapstructure:"user_agent"`
	Proxy            string   `mapstructure:"proxy"`
	ProfilePath      string   `mapstructure:"profile_path"`
	MaxTabs          int      `mapstructure:"max_tabs"`
	DefaultTimeoutMs int      `mapstructure:"default_timeout_ms"`
	Args             []string `mapstructure:"args"`
	IgnoreTLSErrors  bool     `mapstructure:"ignore_tls_errors"`
}

// InputConfig holds settings for human-like input synthesis.
type InputConfig struct {
	// Profile selects the base timing profile: normal, fast, slow, instant.
	Profile string `mapstructure:"profile"`
	// MinPathPoints and MaxPathPoints bound generated mouse paths.
	MinPathPoints int `mapstructure:"min_path_points"`
	MaxPathPoints int `mapstructure:"max_path_points"`
	// JitterIntensity scales perlin wobble on intermediate path points.
	JitterIntensity float64 `mapstructure:"jitter_intensity"`
}

// StealthConfig holds settings for fingerprint spoofing.
type StealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Seed drives deterministic fingerprint generation. Equal seeds
	// produce byte-equal profiles.
	Seed string `mapstructure:"seed"`
	// CanvasNoise is the per-pixel noise intensity, clamped to [0, 0.01].
	CanvasNoise float64 `mapstructure:"canvas_noise"`
}

// SetDefaults registers default values so the app can run with a minimal config.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "ki-browser")
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "red")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 9222)

	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 720)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.max_tabs", 10)
	v.SetDefault("browser.default_timeout_ms", 30000)

	v.SetDefault("input.profile", "normal")
	v.SetDefault("input.min_path_points", 20)
	v.SetDefault("input.max_path_points", 50)
	v.SetDefault("input.jitter_intensity", 0.3)

	v.SetDefault("stealth.enabled", false)
	v.SetDefault("stealth.canvas_noise", 0.0001)
}

// Validate checks all configuration bounds.
func (c *Config) Validate() error {
	if c.Browser.WindowWidth < 100 {
		return fmt.Errorf("browser.window_width must be at least 100 pixels, got %d", c.Browser.WindowWidth)
	}
	if c.Browser.WindowWidth > 7680 {
		return fmt.Errorf("browser.window_width cannot exceed 7680 pixels, got %d", c.Browser.WindowWidth)
	}
	if c.Browser.WindowHeight < 100 {
		return fmt.Errorf("browser.window_height must be at least 100 pixels, got %d", c.Browser.WindowHeight)
	}
	if c.Browser.WindowHeight > 4320 {
		return fmt.Errorf("browser.window_height cannot exceed 4320 pixels, got %d", c.Browser.WindowHeight)
	}
	if c.Browser.MaxTabs < 1 {
		return fmt.Errorf("browser.max_tabs must be at least 1, got %d", c.Browser.MaxTabs)
	}
	if c.Browser.MaxTabs > 100 {
		return fmt.Errorf("browser.max_tabs cannot exceed 100, got %d", c.Browser.MaxTabs)
	}
	if c.Browser.DefaultTimeoutMs < 1000 {
		return fmt.Errorf("browser.default_timeout_ms must be at least 1000, got %d", c.Browser.DefaultTimeoutMs)
	}
	if c.Browser.DefaultTimeoutMs > 300000 {
		return fmt.Errorf("browser.default_timeout_ms cannot exceed 300000, got %d", c.Browser.DefaultTimeoutMs)
	}
	if c.Server.Enabled && c.Server.Port == 0 {
		return fmt.Errorf("server.port cannot be 0 when the API is enabled")
	}
	if c.Browser.Proxy != "" {
		u, err := url.Parse(c.Browser.Proxy)
		if err != nil {
			return fmt.Errorf("browser.proxy is not a valid URL: %w", err)
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("browser.proxy scheme %q is unsupported (http, https, socks5)", u.Scheme)
		}
		if u.Hostname() == "" {
			return fmt.Errorf("browser.proxy host cannot be empty")
		}
	}
	if c.Input.MinPathPoints < 2 {
		return fmt.Errorf("input.min_path_points must be at least 2, got %d", c.Input.MinPathPoints)
	}
	if c.Input.MaxPathPoints < c.Input.MinPathPoints {
		return fmt.Errorf("input.max_path_points (%d) cannot be below input.min_path_points (%d)",
			c.Input.MaxPathPoints, c.Input.MinPathPoints)
	}
	switch c.Input.Profile {
	case "normal", "fast", "slow", "instant":
	default:
		return fmt.Errorf("input.profile %q is unknown (normal, fast, slow, instant)", c.Input.Profile)
	}
	return nil
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Set stores a configuration instance directly. Used by tests and by the
// root command after flag merging.
func Set(cfg *Config) {
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
