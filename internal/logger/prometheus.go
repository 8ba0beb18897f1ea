package logger

import (
	"github.com/maxaizer/talent-intake/internal/metrics"
	log "github.com/sirupsen/logrus"
)

const errorTypeOther = "other"

var knownErrorTypes = map[string]bool{
	ErrorTypeDb:        true,
	ErrorTypeAllocator: true,
	ErrorTypeRedis:     true,
	ErrorTypeIntake:    true,
}

// errorMetricsHook counts warnings and errors by error type. Untagged entries
// and unknown types are folded into "other" to keep label cardinality fixed.
type errorMetricsHook struct{}

func errorTypeOf(entry *log.Entry) string {
	errorType, _ := entry.Data[ErrorTypeField].(string)
	if !knownErrorTypes[errorType] {
		return errorTypeOther
	}
	return errorType
}

func (h *errorMetricsHook) Fire(entry *log.Entry) error {
	metrics.ErrorsCounter.WithLabelValues(errorTypeOf(entry), entry.Level.String()).Inc()
	return nil
}

func (h *errorMetricsHook) Levels() []log.Level {
	return []log.Level{
		log.WarnLevel,
		log.ErrorLevel,
		log.FatalLevel,
		log.PanicLevel,
	}
}

func addPrometheusHook() {
	log.AddHook(&errorMetricsHook{})
}
