package config

import (
	"fmt"
	"github.com/spf13/viper"
	"time"
)

// RedisConfig is optional. When Address is empty, sequences live in the
// database and no identity lock is taken.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Sequences    bool          `mapstructure:"sequences"`
	IdentityLock bool          `mapstructure:"identity_lock"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

func (config RedisConfig) Enabled() bool {
	return config.Address != ""
}

func (config RedisConfig) validate() error {
	if !config.Enabled() {
		if config.Sequences || config.IdentityLock {
			return fmt.Errorf("redis address is required when sequences or identity_lock are enabled")
		}
		return nil
	}
	if config.IdentityLock && config.LockTTL <= 0 {
		return fmt.Errorf("lock_ttl must be positive")
	}
	return nil
}

func (config RedisConfig) bindEnvironmentVariables() error {
	err := viper.BindEnv("redis.address", "REDIS_ADDRESS")
	if err != nil {
		return err
	}

	err = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	if err != nil {
		return err
	}

	return viper.BindEnv("redis.sequences", "REDIS_SEQUENCES")
}
