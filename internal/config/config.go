package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	constants "hostmon/config"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// ServiceEntry maps a service unit name to the label shown on the dashboard
type ServiceEntry struct {
	Name    string `mapstructure:"name"`
	Display string `mapstructure:"display"`
}

// Config represents the application configuration
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	OpenBrowser     bool          `mapstructure:"open_browser"`
	LogFile         string        `mapstructure:"log_file"`

	// Sampling
	DiskPath     string         `mapstructure:"disk_path"`
	Variant      string         `mapstructure:"variant"`
	Services     []ServiceEntry `mapstructure:"services"`
	TopProcesses int            `mapstructure:"top_processes"`
	LogTailLines int            `mapstructure:"log_tail_lines"`
	EventCount   int            `mapstructure:"event_count"`

	// DNF package history
	PackageDB    string `mapstructure:"package_db"`
	PackageLimit int    `mapstructure:"package_limit"`

	// OpenTelemetry export (disabled when endpoint is empty)
	OTelEndpoint string            `mapstructure:"otel_endpoint"`
	OTelHeaders  map[string]string `mapstructure:"otel_headers"`
	OTelInterval time.Duration     `mapstructure:"otel_interval"`
}

// DefaultDiskPath returns the root volume for the running OS
func DefaultDiskPath() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}

// setDefaults registers every key so env overrides and Unmarshal see them
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", constants.DEFAULT_LISTEN_ADDR)
	v.SetDefault("tick_interval", time.Duration(constants.DEFAULT_TICK_INTERVAL_MS)*time.Millisecond)
	v.SetDefault("provider_timeout", time.Duration(constants.DEFAULT_PROVIDER_TIMEOUT_MS)*time.Millisecond)
	v.SetDefault("open_browser", true)
	v.SetDefault("log_file", constants.LOG_FILE)
	v.SetDefault("disk_path", DefaultDiskPath())
	v.SetDefault("variant", constants.VARIANT_AUTO)
	v.SetDefault("services", []ServiceEntry{})
	v.SetDefault("top_processes", constants.DEFAULT_TOP_PROCESSES)
	v.SetDefault("log_tail_lines", constants.DEFAULT_LOG_TAIL_LINES)
	v.SetDefault("event_count", constants.DEFAULT_EVENT_COUNT)
	v.SetDefault("package_db", constants.DEFAULT_PACKAGE_DB)
	v.SetDefault("package_limit", constants.DEFAULT_PACKAGE_LIMIT)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("otel_headers", map[string]string{})
	v.SetDefault("otel_interval", time.Duration(constants.DEFAULT_OTEL_INTERVAL_MS)*time.Millisecond)
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME" + constants.CONFIG_DIR_NAME)
	v.AddConfigPath(".")
	return load(v)
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(constants.APP_NAME))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing file is fine, defaults apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && v.ConfigFileUsed() != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks ranges and enumerations
func (cfg *Config) Validate() error {
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive, got %s", ErrInvalidConfig, cfg.TickInterval)
	}
	if cfg.ProviderTimeout <= 0 {
		return fmt.Errorf("%w: provider_timeout must be positive, got %s", ErrInvalidConfig, cfg.ProviderTimeout)
	}
	if cfg.TopProcesses <= 0 {
		return fmt.Errorf("%w: top_processes must be positive, got %d", ErrInvalidConfig, cfg.TopProcesses)
	}
	switch cfg.Variant {
	case constants.VARIANT_AUTO, constants.VARIANT_GENERIC, constants.VARIANT_WINDOWS, constants.VARIANT_EXCHANGE:
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, cfg.Variant)
	}
	for i, s := range cfg.Services {
		if s.Name == "" {
			return fmt.Errorf("%w: services[%d] has no name", ErrInvalidConfig, i)
		}
	}
	return nil
}

// ServiceTable returns the configured services with the display name
// defaulting to the unit name
func (cfg *Config) ServiceTable() []ServiceEntry {
	out := make([]ServiceEntry, 0, len(cfg.Services))
	for _, s := range cfg.Services {
		if s.Display == "" {
			s.Display = s.Name
		}
		out = append(out, s)
	}
	return out
}

// OTelEnabled reports whether metric export is configured
func (cfg *Config) OTelEnabled() bool {
	return cfg.OTelEndpoint != ""
}
