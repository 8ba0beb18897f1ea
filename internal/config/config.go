package config

import (
	"errors"
	"fmt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"os"
)

type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Intake  IntakeConfig  `mapstructure:"intake"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

const defaultConfigFile = "./configs/config.yaml"

func Get() *Config {

	configFile := defaultConfigFile
	if value, ok := os.LookupEnv("CONFIG_PATH"); ok && value != "" {
		configFile = value
	}

	config, err := loadConfig(configFile)
	if err != nil {
		log.Fatal(err)
	}

	return config
}

func loadConfig(file string) (*Config, error) {

	viper.Reset()
	viper.SetConfigFile(file)
	viper.AutomaticEnv()

	setDefaults()

	err := bindEnvironmentVariables()
	if err != nil {
		return nil, err
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", file, err)
	}

	config := Config{}
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("logger.log_level", string(LevelInfo))
	viper.SetDefault("logger.app_name", "talent-intake")
	viper.SetDefault("logger.output_file", "./logs/intake.log")
	viper.SetDefault("db.max_open_conns", 1)
	viper.SetDefault("db.page_size", 1000)
	viper.SetDefault("redis.lock_ttl", "10s")
	viper.SetDefault("intake.profile_host_markers", []string{"linkedin.com/in/", "linkedin.com/pub/"})
	viper.SetDefault("intake.batch_rows_per_second", 0)
	viper.SetDefault("intake.processing_timeout", "2h")
	viper.SetDefault("intake.queue_cleanup_schedule", "*/15 * * * *")
	viper.SetDefault("intake.status_report_schedule", "0 6 * * *")
	viper.SetDefault("metrics.address", ":8080")
}

func bindEnvironmentVariables() error {
	var errs []error

	logger, db, redis, intake, metrics := LoggerConfig{}, DBConfig{}, RedisConfig{}, IntakeConfig{}, MetricsConfig{}

	if err := logger.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if err := db.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := redis.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("RedisConfig: %w", err))
	}

	if err := intake.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("IntakeConfig: %w", err))
	}

	if err := metrics.bindEnvironmentVariables(); err != nil {
		errs = append(errs, fmt.Errorf("MetricsConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	if err := config.DB.validate(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := config.Redis.validate(); err != nil {
		errs = append(errs, fmt.Errorf("RedisConfig: %w", err))
	}

	if err := config.Intake.validate(); err != nil {
		errs = append(errs, fmt.Errorf("IntakeConfig: %w", err))
	}

	if err := config.Logger.validate(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}
