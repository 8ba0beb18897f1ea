package config

import (
	"fmt"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"strings"
	"time"
)

type IntakeConfig struct {
	ProfileHostMarkers   []string      `mapstructure:"profile_host_markers"`
	BatchRowsPerSecond   float64       `mapstructure:"batch_rows_per_second"`
	ProcessingTimeout    time.Duration `mapstructure:"processing_timeout"`
	QueueCleanupSchedule string        `mapstructure:"queue_cleanup_schedule"`
	StatusReportSchedule string        `mapstructure:"status_report_schedule"`
}

func (config IntakeConfig) validate() error {

	var problems []string

	if len(config.ProfileHostMarkers) == 0 {
		problems = append(problems, "profile_host_markers must not be empty")
	}

	if config.BatchRowsPerSecond < 0 {
		problems = append(problems, "batch_rows_per_second must be non-negative")
	}

	if config.ProcessingTimeout <= 0 {
		problems = append(problems, "processing_timeout must be positive")
	}

	for name, spec := range map[string]string{
		"queue_cleanup_schedule": config.QueueCleanupSchedule,
		"status_report_schedule": config.StatusReportSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			problems = append(problems, fmt.Sprintf("invalid %s: %v", name, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid variables: %s", strings.Join(problems, ", "))
	}

	return nil
}

func (config IntakeConfig) bindEnvironmentVariables() error {
	err := viper.BindEnv("intake.batch_rows_per_second", "BATCH_ROWS_PER_SECOND")
	if err != nil {
		return err
	}

	return viper.BindEnv("intake.processing_timeout", "PROCESSING_TIMEOUT")
}
