package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors exported on /metrics
type Metrics struct {
	Requests       *prometheus.CounterVec
	Latency        *prometheus.HistogramVec
	EntriesDropped prometheus.Counter
	EntriesSplit   prometheus.Counter
	ParseFailures  prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagpipe",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tagpipe",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"route"}),
		EntriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tagpipe",
			Name:      "validator_entries_dropped_total",
			Help:      "Model record entries discarded during validation.",
		}),
		EntriesSplit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tagpipe",
			Name:      "validator_entries_split_total",
			Help:      "Narrative entries split into several tags.",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tagpipe",
			Name:      "record_parse_failures_total",
			Help:      "Model outputs that could not be decoded as a record.",
		}),
	}

	reg.MustRegister(m.Requests, m.Latency, m.EntriesDropped, m.EntriesSplit, m.ParseFailures)
	return m
}
