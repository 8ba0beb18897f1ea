package config

import "github.com/spf13/viper"

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

func (config MetricsConfig) bindEnvironmentVariables() error {
	return viper.BindEnv("metrics.address", "METRICS_ADDRESS")
}
