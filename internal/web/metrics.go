package web

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Upload outcomes recorded by csvreport_uploads_total.
const (
	resultOK         = "ok"
	resultBadRequest = "bad_request"
	resultTooLarge   = "too_large"
	resultParseError = "parse_error"
	resultError      = "error"
)

type metrics struct {
	uploads     *prometheus.CounterVec
	cleans      prometheus.Counter
	rowsRemoved prometheus.Counter
	uploadRows  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer, activeSessions func() float64) *metrics {
	m := &metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csvreport",
			Name:      "uploads_total",
			Help:      "Uploaded files by outcome.",
		}, []string{"result"}),
		cleans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csvreport",
			Name:      "cleans_total",
			Help:      "Clean operations performed.",
		}),
		rowsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csvreport",
			Name:      "rows_removed_total",
			Help:      "Rows dropped for containing missing values.",
		}),
		uploadRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "csvreport",
			Name:      "upload_rows",
			Help:      "Row count of successfully loaded uploads.",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 6),
		}),
	}
	reg.MustRegister(
		m.uploads,
		m.cleans,
		m.rowsRemoved,
		m.uploadRows,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "csvreport",
			Name:      "active_sessions",
			Help:      "Sessions currently held by the server.",
		}, activeSessions),
	)
	return m
}
