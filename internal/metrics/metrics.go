package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"net/http"
	"sync"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_errors_total",
			Help: "Warnings and errors logged, by error type and level.",
		},
		[]string{"type", "level"},
	)
	IntakeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_outcomes_total",
			Help: "Intake outcomes by entry path and result.",
		},
		[]string{"source", "outcome"},
	)
	DuplicateCheckDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "intake_duplicate_check_duration_seconds",
			Help:       "Duration of each duplicate check tier.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"tier"},
	)
	ReservedIDs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_reserved_ids_total",
			Help: "Total number of reserved sequential ids.",
		},
		[]string{"namespace"},
	)
	AllocationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_allocation_failures_total",
			Help: "Total number of failed id reservations.",
		},
		[]string{"namespace"},
	)
	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_batch_rows",
			Help:    "Rows per submitted batch.",
			Buckets: []float64{1, 10, 50, 100, 500, 1000},
		},
	)
	ExpiredQueueItems = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_queue_expired_total",
			Help: "Total number of in-progress queue items expired by the cleaner.",
		},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ErrorsCounter)
		prometheus.MustRegister(IntakeOutcomes)
		prometheus.MustRegister(DuplicateCheckDuration)
		prometheus.MustRegister(ReservedIDs)
		prometheus.MustRegister(AllocationFailures)
		prometheus.MustRegister(BatchSize)
		prometheus.MustRegister(ExpiredQueueItems)
	})
}

func StartMetricsServer(address string) {

	Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(address, mux))
	}()
}
