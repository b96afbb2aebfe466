package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Счетчики результатов сверки напоминаний
	RemindersSentCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of reminder notifications delivered",
		},
	)

	RemindersSkippedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_skipped_total",
			Help: "Total number of appointments skipped during reconciliation",
		},
	)

	ReconciliationRunsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_runs_total",
			Help: "Total number of completed reconciliation runs",
		},
	)

	// Метрики исходящих запросов к YClients API
	APIRequestsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yclients_requests_total",
			Help: "Outbound YClients API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "yclients_request_duration_seconds",
			Help:    "YClients API request duration in seconds",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)
)

func Init() {
	prometheus.MustRegister(RemindersSentCounter)
	prometheus.MustRegister(RemindersSkippedCounter)
	prometheus.MustRegister(ReconciliationRunsCounter)
	prometheus.MustRegister(APIRequestsCounter)
	prometheus.MustRegister(APIRequestDuration)
}

func StartMetricsServer(port string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics server running on %s", port)
		if err := http.ListenAndServe(port, nil); err != nil {
			log.Fatalf("failed to start metrics server: %v", err)
		}
	}()
}

func ObserveAPIRequest(method, status string, duration time.Duration) {
	APIRequestsCounter.WithLabelValues(method, status).Inc()
	APIRequestDuration.Observe(duration.Seconds())
}

func ObserveRun(sent, skipped int) {
	ReconciliationRunsCounter.Inc()
	RemindersSentCounter.Add(float64(sent))
	RemindersSkippedCounter.Add(float64(skipped))
}
