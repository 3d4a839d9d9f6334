// Package config loads service configuration from YAML files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const configDir = "configs"

// Options tweaks Load.
type Options struct {
	// Defaults are registered before the file is read, which also makes
	// their keys overridable from the environment.
	Defaults map[string]interface{}
}

// Load reads the configuration of serviceName into out.
//
// The file is $CONFIG_PATH when set (a file or a directory), else
// configs/{APP_ENV}/{serviceName}.yaml, falling back to configs/example.
// Every key can be overridden by SERVICENAME_SECTION_KEY.
func Load(serviceName string, out interface{}, opts Options) error {
	v := viper.New()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix(strings.ToUpper(serviceName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range opts.Defaults {
		v.SetDefault(key, value)
	}

	if err := readConfigFile(v, serviceName, env); err != nil {
		return err
	}

	err := v.Unmarshal(out, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

func readConfigFile(v *viper.Viper, serviceName, env string) error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath != "" && filepath.Ext(configPath) != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		return nil
	}

	if configPath == "" {
		configPath = filepath.Join(configDir, env)
	}

	v.SetConfigName(serviceName)
	v.AddConfigPath(configPath)
	v.AddConfigPath(filepath.Join(configDir, "example"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Environment and defaults alone are a valid configuration.
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}
