package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	PaymentsTotal           *prometheus.CounterVec
	LoansCreatedTotal       prometheus.Counter
	InstallmentsSettledTotal prometheus.Counter
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_payments_total",
				Help: "Total number of loan payment attempts by outcome.",
			},
			[]string{"status"},
		),
		LoansCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_loans_created_total",
				Help: "Total number of loans successfully created.",
			},
		),
		InstallmentsSettledTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_installments_settled_total",
				Help: "Total number of installments settled by payments.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordPayment(status string) {
	Business.PaymentsTotal.WithLabelValues(status).Inc()
}

func RecordLoanCreated() {
	Business.LoansCreatedTotal.Inc()
}

func RecordInstallmentsSettled(count int) {
	Business.InstallmentsSettledTotal.Add(float64(count))
}
