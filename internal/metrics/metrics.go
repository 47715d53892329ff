package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screenassist",
			Name:      "provider_requests_total",
			Help:      "Total chat-completions requests by model and result",
		},
		[]string{"model", "result"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "screenassist",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of chat-completions requests by model",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"model"},
	)

	triggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screenassist",
			Name:      "triggers_total",
			Help:      "Pipeline triggers by outcome (accepted, dropped)",
		},
		[]string{"outcome"},
	)

	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screenassist",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by mode and result",
		},
		[]string{"mode", "result"},
	)

	captureLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "screenassist",
			Name:      "capture_duration_seconds",
			Help:      "Duration of screen captures",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	pipelineState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "screenassist",
			Name:      "pipeline_state",
			Help:      "Current pipeline state (0 idle, 1 capturing, 2 awaiting answer)",
		},
	)
)

// Init registers collectors. Call once at startup.
func Init() {
	prometheus.MustRegister(providerReqs, providerLatency, triggers, runs, captureLatency, pipelineState)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveProvider(model, result string, dur time.Duration) {
	providerReqs.WithLabelValues(model, result).Inc()
	providerLatency.WithLabelValues(model).Observe(dur.Seconds())
}

func IncTrigger(accepted bool) {
	if accepted {
		triggers.WithLabelValues("accepted").Inc()
		return
	}
	triggers.WithLabelValues("dropped").Inc()
}

func IncRun(mode, result string)       { runs.WithLabelValues(mode, result).Inc() }
func ObserveCapture(dur time.Duration) { captureLatency.Observe(dur.Seconds()) }
func SetPipelineState(state int)       { pipelineState.Set(float64(state)) }
