// Package config loads CLI configuration from an optional YAML file plus
// OPTELEM_* environment variables, with sane defaults when neither is
// present. Command-line flags override whatever is loaded here.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the file/env configuration for the optelem CLIs.
type Config struct {
	API struct {
		BaseURL        string `mapstructure:"base_url"`
		WSURL          string `mapstructure:"ws_url"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"api"`
	Device struct {
		Name    string `mapstructure:"name"`
		IfIndex int    `mapstructure:"if_index"`
	} `mapstructure:"device"`
	Chart struct {
		Width  int    `mapstructure:"width"`
		Height int    `mapstructure:"height"`
		OutDir string `mapstructure:"out_dir"`
	} `mapstructure:"chart"`
	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout_seconds", 60)
	v.SetDefault("device.if_index", 0)
	v.SetDefault("chart.width", 1100)
	v.SetDefault("chart.height", 340)
	v.SetDefault("chart.out_dir", ".")
	v.SetDefault("log_level", "info")
}

// Load reads configuration. When path is empty an optelem.yaml in the
// current directory is used if present; a missing file is not an error (the
// defaults apply), a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("OPTELEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("optelem")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
