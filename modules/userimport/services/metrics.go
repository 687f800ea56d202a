package services

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	filesTotal       *prometheus.CounterVec
	rowsTotal        *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
	submitLatency    *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		filesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "user_import",
			Name:      "files_total",
			Help:      "Total number of spreadsheets processed, by outcome.",
		}, []string{"result"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "user_import",
			Name:      "rows_total",
			Help:      "Total number of data rows validated, by status.",
		}, []string{"status"}),
		submissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "user_import",
			Name:      "submissions_total",
			Help:      "Total number of bulk-create calls, by result.",
		}, []string{"result"}),
		submitLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "user_import",
			Name:      "submit_latency_seconds",
			Help:      "Latency distribution for bulk-create calls.",
			Buckets: []float64{
				0.05, 0.1, 0.2, 0.5,
				1, 2, 5, 10, 30,
			},
		}, []string{"result"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

// fileResult is the label used for files_total.
func fileResult(err error) string {
	if err == nil {
		return "ok"
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return "error"
}
