// Package config loads application settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

type Config struct {
	Worker  WorkerConfig  `mapstructure:"worker"`
	Mold    MoldConfig    `mapstructure:"mold"`
	History HistoryConfig `mapstructure:"history"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

type WorkerConfig struct {
	// Eager keeps a warm worker process ready between runs.
	Eager bool `mapstructure:"eager"`
}

type MoldConfig struct {
	// Binary is the mold executable, looked up on PATH when relative.
	Binary string `mapstructure:"binary"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

type PathsConfig struct {
	// TempDir holds per-run work directories. Empty means a fresh
	// directory under the system temp location.
	TempDir string `mapstructure:"temp_dir"`
}

// DefaultPath is the conventional configuration file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "moldrun", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.eager", true)
	v.SetDefault("mold.binary", "mold")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(xdg.DataHome, "moldrun", "history.db"))
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.output_paths", []string{"stderr"})
	v.SetDefault("logger.error_output_paths", []string{"stderr"})
	v.SetDefault("paths.temp_dir", "")
}

// Load reads the configuration file at path, falling back to defaults and
// MOLDRUN_* environment overrides. A missing file at the default location
// is not an error; an explicitly named missing file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MOLDRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
