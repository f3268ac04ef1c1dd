package http

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"songswipe/internal/core"
	"songswipe/internal/strategy"
)

// Metrics collects pipeline and frontend counters. It implements the observer
// interfaces of the catalog, queue, strategy and session packages.
type Metrics struct {
	ProviderCallsTotal *prometheus.CounterVec
	ProviderLatency    *prometheus.HistogramVec
	SearchAttempts     *prometheus.CounterVec
	RebuildsTotal      *prometheus.CounterVec
	WorkingSetSize     prometheus.Gauge
	DecisionsTotal     *prometheus.CounterVec
	LLMCallsTotal      *prometheus.CounterVec
	RequestsTotal      *prometheus.CounterVec
	ThrottledTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songswipe_provider_calls_total",
				Help: "Catalog API calls by provider, operation and outcome",
			},
			[]string{"provider", "op", "outcome"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "songswipe_provider_call_duration_seconds",
				Help:    "Catalog API call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "op"},
		),
		SearchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songswipe_search_attempts_total",
				Help: "Discovery search attempts by result",
			},
			[]string{"result"},
		),
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songswipe_rebuilds_total",
				Help: "Working set builds by source and status",
			},
			[]string{"source", "status"},
		),
		WorkingSetSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "songswipe_working_set_size",
				Help: "Size of the most recently built working set",
			},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songswipe_decisions_total",
				Help: "Committed swipe decisions",
			},
			[]string{"decision"},
		),
		LLMCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songswipe_llm_calls_total",
				Help: "Search term suggestion calls",
			},
			[]string{"provider", "status"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songswipe_http_requests_total",
				Help: "API requests by route and status code class",
			},
			[]string{"route", "code"},
		),
		ThrottledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songswipe_throttled_total",
				Help: "Requests rejected by the flood limiter",
			},
			[]string{"frontend"},
		),
	}

	reg.MustRegister(
		m.ProviderCallsTotal,
		m.ProviderLatency,
		m.SearchAttempts,
		m.RebuildsTotal,
		m.WorkingSetSize,
		m.DecisionsTotal,
		m.LLMCallsTotal,
		m.RequestsTotal,
		m.ThrottledTotal,
	)
	return m
}

func (m *Metrics) ObserveProviderCall(provider, op string, err error, took time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(provider, op, outcome(err)).Inc()
	m.ProviderLatency.WithLabelValues(provider, op).Observe(took.Seconds())
}

func (m *Metrics) ObserveAttempt(a strategy.Attempt) {
	switch {
	case a.Err != nil:
		m.SearchAttempts.WithLabelValues("error").Inc()
	case a.Playable > 0:
		m.SearchAttempts.WithLabelValues("playable").Inc()
	default:
		m.SearchAttempts.WithLabelValues("empty").Inc()
	}
}

func (m *Metrics) ObserveRebuild(source string, tracks int, err error, _ time.Duration) {
	if err != nil {
		m.RebuildsTotal.WithLabelValues(source, "error").Inc()
		return
	}
	m.RebuildsTotal.WithLabelValues(source, "ok").Inc()
	m.WorkingSetSize.Set(float64(tracks))
}

func (m *Metrics) ObserveDecision(d core.Decision) {
	m.DecisionsTotal.WithLabelValues(d.String()).Inc()
}

func (m *Metrics) RecordLLMCall(provider string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMCallsTotal.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) RecordThrottled(frontend string) {
	m.ThrottledTotal.WithLabelValues(frontend).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrCredentialExpiredOrInvalid):
		return "credential"
	default:
		return "unavailable"
	}
}
