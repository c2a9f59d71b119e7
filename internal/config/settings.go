package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type DiscoveryConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// Interval converts the configured period, falling back to the default
// when unset.
func (d DiscoveryConfig) Interval() time.Duration {
	if d.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.IntervalSeconds) * time.Second
}

type DeviceConfig struct {
	Application string `mapstructure:"application"`
	Insecure    bool   `mapstructure:"insecure"` // skip TLS verification toward the receiver
}

type SimConfig struct {
	Addr         string   `mapstructure:"addr"`
	FriendlyName string   `mapstructure:"friendly_name"`
	ModelName    string   `mapstructure:"model_name"`
	UDN          string   `mapstructure:"udn"`
	Apps         []string `mapstructure:"apps"`
}

type Settings struct {
	Env       string          `mapstructure:"env"`
	Debug     bool            `mapstructure:"debug"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Device    DeviceConfig    `mapstructure:"device"`
	Sim       SimConfig       `mapstructure:"sim"`
}

func Load() (*Settings, error) {
	// Load settings from a configuration file or environment variables
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")

	viper.SetDefault("discovery.interval_seconds", 30)
	viper.SetDefault("sim.addr", ":8008")
	viper.SetDefault("sim.friendly_name", "OCast Emulator")

	if err := viper.ReadInConfig(); err != nil {
		// flags and defaults carry a missing file
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
