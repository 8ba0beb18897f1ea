package config

import (
	"errors"
	"fmt"
	"github.com/spf13/viper"
)

type DBConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	MaxOpenConns     int    `mapstructure:"max_open_conns"`
	PageSize         int    `mapstructure:"page_size"`
}

func (config DBConfig) validate() error {
	var errs []error

	if config.ConnectionString == "" {
		errs = append(errs, fmt.Errorf("missing variable: db connection string"))
	}
	if config.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("max_open_conns must be non-negative"))
	}
	if config.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (config DBConfig) bindEnvironmentVariables() error {
	if err := viper.BindEnv("db.max_open_conns", "DB_MAX_OPEN_CONNS"); err != nil {
		return err
	}
	return viper.BindEnv("db.connection_string", "DB_CONNECTION_STRING")
}
