// Package config loads the daemon's configuration surface through viper,
// from a YAML file plus environment overrides.
package config

import (
	"strings"

	"github.com/spf13/viper"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
)

// ServerConfig is the server.* surface.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig is the logging.* surface.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	LogDir   string `mapstructure:"logDir"`
	MaxFiles int    `mapstructure:"maxFiles"`
	MaxSize  int    `mapstructure:"maxSize"`
}

// SecurityConfig is the security.* surface.
type SecurityConfig struct {
	RequireAuth             bool     `mapstructure:"requireAuth"`
	AllowedCommands         []string `mapstructure:"allowedCommands"`
	MaxConcurrentOperations int      `mapstructure:"maxConcurrentOperations"`
	CommandTimeout          int      `mapstructure:"commandTimeout"`
	AuditAll                bool     `mapstructure:"auditAll"`
}

// PluginConfig is a single plugin's opaque sub-configuration.
type PluginConfig struct {
	Enabled bool                   `mapstructure:"enabled"`
	Options map[string]interface{} `mapstructure:",remain"`
}

// Config is the daemon's fully decoded configuration.
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Security SecurityConfig          `mapstructure:"security"`
	Plugins  map[string]PluginConfig `mapstructure:"plugins"`
}

// Default returns the daemon's default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "localhost", Port: 8080},
		Logging: LoggingConfig{
			Level:    "info",
			LogDir:   "/var/log/mcpd",
			MaxFiles: 14,
			MaxSize:  10,
		},
		Security: SecurityConfig{
			RequireAuth:             false,
			AllowedCommands:         []string{},
			MaxConcurrentOperations: 10,
			CommandTimeout:          30000,
			AuditAll:                true,
		},
		Plugins: map[string]PluginConfig{},
	}
}

// Load reads configuration from path (a YAML file), falling back to
// defaults for anything unset, and applies MCPD_-prefixed environment
// overrides (e.g. MCPD_SERVER_PORT).
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v, Default())

	v.SetEnvPrefix("MCPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, daemonerrors.New(daemonerrors.CodeInternalError, "failed to read configuration file", daemonerrors.CategoryInternal, daemonerrors.SeverityError).WithDetail(err.Error())
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, daemonerrors.New(daemonerrors.CodeInternalError, "failed to decode configuration", daemonerrors.CategoryInternal, daemonerrors.SeverityError).WithDetail(err.Error())
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper, defaults Config) {
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.logDir", defaults.Logging.LogDir)
	v.SetDefault("logging.maxFiles", defaults.Logging.MaxFiles)
	v.SetDefault("logging.maxSize", defaults.Logging.MaxSize)
	v.SetDefault("security.requireAuth", defaults.Security.RequireAuth)
	v.SetDefault("security.allowedCommands", defaults.Security.AllowedCommands)
	v.SetDefault("security.maxConcurrentOperations", defaults.Security.MaxConcurrentOperations)
	v.SetDefault("security.commandTimeout", defaults.Security.CommandTimeout)
	v.SetDefault("security.auditAll", defaults.Security.AuditAll)
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return daemonerrors.New(daemonerrors.CodeInternalError, "invalid configuration", daemonerrors.CategoryInternal, daemonerrors.SeverityError).WithDetail("server.port must be in 1..65535")
	}
	switch cfg.Logging.Level {
	case "error", "warn", "info", "debug":
	default:
		return daemonerrors.New(daemonerrors.CodeInternalError, "invalid configuration", daemonerrors.CategoryInternal, daemonerrors.SeverityError).WithDetail("logging.level must be one of error|warn|info|debug")
	}
	if cfg.Security.MaxConcurrentOperations < 1 {
		return daemonerrors.New(daemonerrors.CodeInternalError, "invalid configuration", daemonerrors.CategoryInternal, daemonerrors.SeverityError).WithDetail("security.maxConcurrentOperations must be >= 1")
	}
	if cfg.Security.CommandTimeout < 1000 {
		return daemonerrors.New(daemonerrors.CodeInternalError, "invalid configuration", daemonerrors.CategoryInternal, daemonerrors.SeverityError).WithDetail("security.commandTimeout must be >= 1000ms")
	}
	return nil
}
