package config

import (
	"errors"
	"fmt"
	"github.com/spf13/viper"
	"time"
)

type LogLevel string

const (
	LevelInfo    LogLevel = "INFO"
	LevelDebug   LogLevel = "DEBUG"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
	LevelFatal   LogLevel = "FATAL"
)

type LoggerConfig struct {
	LogLevel      LogLevel      `mapstructure:"log_level"`
	AppName       string        `mapstructure:"app_name"`
	OutputFile    string        `mapstructure:"output_file"`
	LokiURL       string        `mapstructure:"loki_url"`
	LokiUser      string        `mapstructure:"loki_user"`
	LokiPassword  string        `mapstructure:"loki_password"`
	LokiBatchSize int           `mapstructure:"loki_batch_size"`
	LokiBatchWait time.Duration `mapstructure:"loki_batch_wait"`
}

func (config LoggerConfig) LokiEnabled() bool {
	return config.LokiURL != ""
}

func (config LoggerConfig) validate() error {
	var errs []error

	switch config.LogLevel {
	case LevelInfo, LevelDebug, LevelWarning, LevelError, LevelFatal:
	case "":
		errs = append(errs, fmt.Errorf("missing variable: log_level"))
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", config.LogLevel))
	}

	if config.OutputFile == "" {
		errs = append(errs, fmt.Errorf("missing variable: output_file"))
	}

	if config.LokiBatchSize < 0 || config.LokiBatchWait < 0 {
		errs = append(errs, fmt.Errorf("loki batch settings must be non-negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config LoggerConfig) bindEnvironmentVariables() error {

	err := viper.BindEnv("logger.loki_url", "LOKI_URL")
	if err != nil {
		return err
	}

	err = viper.BindEnv("logger.loki_user", "LOKI_USER")
	if err != nil {
		return err
	}

	err = viper.BindEnv("logger.loki_password", "LOKI_PASSWORD")
	if err != nil {
		return err
	}

	err = viper.BindEnv("logger.output_file", "LOG_OUTPUT_FILE")
	if err != nil {
		return err
	}

	return viper.BindEnv("logger.log_level", "LOG_LEVEL")
}
