// Package metrics exposes Prometheus collectors for the turn pipeline and
// the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vocalis"

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80}

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	InferenceLatency     prometheus.Histogram
	SynthesisLatency     prometheus.Histogram
	TranscriptionLatency prometheus.Histogram
	Turns                *prometheus.CounterVec
	ContextWarnings      prometheus.Counter
	GarbledTranscripts   prometheus.Counter
	PromptTokens         prometheus.Counter
	CompletionTokens     prometheus.Counter
}

// New registers every collector plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestCount: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"method", "route"}),
		InferenceLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Language model call duration in seconds",
			Buckets:   latencyBuckets,
		}),
		SynthesisLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Speech synthesis duration in seconds",
			Buckets:   latencyBuckets,
		}),
		TranscriptionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Speech recognition duration in seconds",
			Buckets:   latencyBuckets,
		}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome",
		}, []string{"outcome"}),
		ContextWarnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_warnings_total",
			Help:      "Turns whose token count reached 90% of the context window",
		}),
		GarbledTranscripts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "garbled_transcripts_total",
			Help:      "Transcripts discarded as hallucinated or mixed-script",
		}),
		PromptTokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_tokens_total",
			Help:      "Prompt tokens evaluated by the model",
		}),
		CompletionTokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_tokens_total",
			Help:      "Tokens generated by the model",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// TrackBusDrops exports the event bus drop count, e.g. (*eventbus.Bus).Dropped.
func (m *Metrics) TrackBusDrops(dropped func() uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eventbus_dropped_total",
		Help:      "Events dropped because a subscriber buffer was full",
	}, func() float64 { return float64(dropped()) }))
}

// ObserveRequest records one HTTP exchange. route is the chi route pattern,
// never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.RequestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveTurn records a finished (or failed) conversation turn.
func (m *Metrics) ObserveTurn(outcome string, inference, synthesis time.Duration, promptTokens, completionTokens int, warned bool) {
	m.Turns.WithLabelValues(outcome).Inc()
	if inference > 0 {
		m.InferenceLatency.Observe(inference.Seconds())
	}
	if synthesis > 0 {
		m.SynthesisLatency.Observe(synthesis.Seconds())
	}
	m.PromptTokens.Add(float64(promptTokens))
	m.CompletionTokens.Add(float64(completionTokens))
	if warned {
		m.ContextWarnings.Inc()
	}
}

// ObserveTranscription records one speech recognition call.
func (m *Metrics) ObserveTranscription(d time.Duration, garbled bool) {
	m.TranscriptionLatency.Observe(d.Seconds())
	if garbled {
		m.GarbledTranscripts.Inc()
	}
}
