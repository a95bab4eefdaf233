package serv

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dosco/nlpipe/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "nlpipe"

type metrics struct {
	reg *prometheus.Registry

	translations *prometheus.CounterVec
	stages       *prometheus.CounterVec
	runs         *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// newMetrics creates the service metrics on their own registry so more
// than one service can live in a process.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &metrics{
		reg: reg,
		translations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "translations_total",
			Help:      "Sentences translated, by outcome.",
		}, []string{"outcome"}),
		stages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_stages_total",
			Help:      "Stages emitted in translated pipelines, by stage operator.",
		}, []string{"stage"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipelines run against MongoDB, by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time taken to serve HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status_code"}),
	}
}

func (m *metrics) observeResult(res *core.Result) {
	if !res.Found() {
		m.translations.WithLabelValues("not_found").Inc()
		return
	}
	m.translations.WithLabelValues("ok").Inc()
	for _, st := range res.Stages() {
		m.stages.WithLabelValues(st).Inc()
	}
}

func (m *metrics) observeRun(err error) {
	if err != nil {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
}

func (m *metrics) observeRequest(route string, status int, took time.Duration) {
	m.duration.WithLabelValues(route, strconv.Itoa(status)).Observe(took.Seconds())
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
