package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads a YAML config file and applies defaults. A missing file is not
// an error: the daemon runs fine on defaults alone (the cron secret and
// telegram credentials just stay unset).
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v := viper.New()
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
			}
			if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
				dc.TagName = "toml"
				dc.WeaklyTypedInput = true
			}); err != nil {
				return nil, fmt.Errorf("parsing config failed: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file failed (%s): %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
