// Package metrics holds the Prometheus collectors shared by the oracle,
// extractor, ingestion and orchestration layers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sprintfactory"

// Registry is the process-wide registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// OracleCalls counts completion requests by purpose and outcome ("ok", "error").
	OracleCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_calls_total",
		Help:      "Completion oracle invocations.",
	}, []string{"purpose", "outcome"})

	// OracleLatency observes completion latency by purpose.
	OracleLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "oracle_latency_seconds",
		Help:      "Completion oracle latency.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"purpose"})

	// Extractions counts plan extractions by the strategy tier that produced rows.
	Extractions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plan_extractions_total",
		Help:      "Plan extractions by producing strategy.",
	}, []string{"tier"})

	// IngestedFiles counts ingested files by kind ("resume", "backlog") and outcome.
	IngestedFiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingested_files_total",
		Help:      "Ingested files by kind and outcome.",
	}, []string{"kind", "outcome"})

	// Operations counts orchestrator operations by name and outcome.
	Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Orchestrator operations by name and outcome.",
	}, []string{"operation", "outcome"})

	// SufficiencyScore tracks the last reported interview sufficiency score.
	SufficiencyScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "interview_sufficiency_score",
		Help:      "Most recent interview sufficiency score.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		OracleCalls,
		OracleLatency,
		Extractions,
		IngestedFiles,
		Operations,
		SufficiencyScore,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Outcome maps an error to the "ok"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveOracle records one oracle call.
func ObserveOracle(purpose string, start time.Time, err error) {
	OracleCalls.WithLabelValues(purpose, Outcome(err)).Inc()
	OracleLatency.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
}
