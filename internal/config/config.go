package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// EnvPrefix prefixes every environment override: FORMKIT_DATABASE_PATH,
// FORMKIT_LOGGING_LEVEL and so on.
const EnvPrefix = "FORMKIT"

// Config is the runtime configuration of the formkit command.
type Config struct {
	Registry RegistryConfig `mapstructure:"registry"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Display  DisplayConfig  `mapstructure:"display"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Options  OptionsConfig  `mapstructure:"options"`
}

// RegistryConfig locates the form declarations.
type RegistryConfig struct {
	Dir         string        `mapstructure:"dir"`
	Watch       bool          `mapstructure:"watch"`
	ReloadDelay time.Duration `mapstructure:"reload_delay"`
}

// DatabaseConfig locates the sqlite entity store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP runtime.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	Metrics         bool          `mapstructure:"metrics"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DisplayConfig drives the detail pipeline.
type DisplayConfig struct {
	Locale   string `mapstructure:"locale"`
	Currency string `mapstructure:"currency"`
	Sanitize bool   `mapstructure:"sanitize"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// OptionsConfig tunes option resolution.
type OptionsConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			Dir:         "forms",
			ReloadDelay: 300 * time.Millisecond,
		},
		Database: DatabaseConfig{Path: "formkit.db"},
		Server: ServerConfig{
			Listen:          ":8080",
			Metrics:         true,
			ShutdownTimeout: 10 * time.Second,
		},
		Display: DisplayConfig{
			Locale:   "en",
			Currency: "EUR",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Options: OptionsConfig{Concurrency: 4},
	}
}

// Load reads configFile, or formkit.yaml from the working directory when
// configFile is empty, and applies FORMKIT_* environment overrides. A
// missing default file is not an error; a missing explicit file is.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("formkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", describeFile(configFile), err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// no file mentions.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("registry.dir", cfg.Registry.Dir)
	v.SetDefault("registry.watch", cfg.Registry.Watch)
	v.SetDefault("registry.reload_delay", cfg.Registry.ReloadDelay)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("server.listen", cfg.Server.Listen)
	v.SetDefault("server.metrics", cfg.Server.Metrics)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("display.locale", cfg.Display.Locale)
	v.SetDefault("display.currency", cfg.Display.Currency)
	v.SetDefault("display.sanitize", cfg.Display.Sanitize)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
	v.SetDefault("logging.time_format", cfg.Logging.TimeFormat)
	v.SetDefault("options.concurrency", cfg.Options.Concurrency)
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	var errs []error
	if _, err := language.Parse(c.Display.Locale); err != nil {
		errs = append(errs, fmt.Errorf("config: display.locale %q: %w", c.Display.Locale, err))
	}
	if _, err := currency.ParseISO(c.Display.Currency); err != nil {
		errs = append(errs, fmt.Errorf("config: display.currency %q: %w", c.Display.Currency, err))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("config: logging.format must be json or console, got %q", c.Logging.Format))
	}
	if c.Options.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("config: options.concurrency must be positive, got %d", c.Options.Concurrency))
	}
	if strings.TrimSpace(c.Registry.Dir) == "" {
		errs = append(errs, errors.New("config: registry.dir is required"))
	}
	return errors.Join(errs...)
}

// Locale returns the parsed display locale.
func (c *Config) Locale() language.Tag {
	tag, err := language.Parse(c.Display.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

func describeFile(configFile string) string {
	if configFile == "" {
		return "formkit.yaml"
	}
	return configFile
}
