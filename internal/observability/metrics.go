package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// geocoding core and the listing enrichment pipeline.
type Metrics struct {
	// Geocoding client metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse,autocomplete}, outcome={success,empty,error}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeEnabled     prometheus.Gauge

	// Session metrics.
	DebouncedRequests prometheus.Counter     // autocomplete requests actually issued after debounce
	StaleDrops        *prometheus.CounterVec // labels: session={autocomplete,pin}
	SessionRetries    *prometheus.CounterVec // labels: session={autocomplete,pin}
	PinTransitions    *prometheus.CounterVec // labels: state

	// HTTP API metrics.
	SuggestionRequests *prometheus.CounterVec // labels: outcome={ok,bad_request,upstream_error}

	// Enrichment pipeline metrics.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	TransformErrors         prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "placepoint",
			Name:      "geocode_api_duration_seconds",
			Help:      "Upstream geocoding request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "placepoint",
			Name:      "geocode_enabled",
			Help:      "1 when a geocoding provider is configured, 0 otherwise.",
		}),
		DebouncedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "autocomplete_debounced_requests_total",
			Help:      "Autocomplete requests issued after the debounce interval elapsed.",
		}),
		StaleDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "session_stale_drops_total",
			Help:      "Responses discarded because a newer request superseded them.",
		}, []string{"session"}),
		SessionRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "session_retries_total",
			Help:      "Transient-failure retries performed inside sessions.",
		}, []string{"session"}),
		PinTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "pin_transitions_total",
			Help:      "Pin session state transitions by target state.",
		}, []string{"state"}),
		SuggestionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "suggestion_requests_total",
			Help:      "Address-suggestion HTTP requests by outcome.",
		}, []string{"outcome"}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "messages_consumed_total",
			Help:      "Total raw listing messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "messages_produced_total",
			Help:      "Total enriched listings written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "placepoint",
			Name:      "transform_errors_total",
			Help:      "Total listing parse/enrichment failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "placepoint",
			Name:      "pipeline_running",
			Help:      "1 when the enrichment pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "placepoint",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from the source topic.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "placepoint",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-enrich-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}

	prometheus.MustRegister(
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
		m.GeocodeCache,
		m.GeocodeEnabled,
		m.DebouncedRequests,
		m.StaleDrops,
		m.SessionRetries,
		m.PinTransitions,
		m.SuggestionRequests,
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		GeocodeRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "placepoint", Name: "geocode_requests_total"}, []string{"method", "outcome"}),
		GeocodeAPIDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "placepoint", Name: "geocode_api_duration_seconds"}, []string{"method"}),
		GeocodeCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "placepoint", Name: "geocode_cache_total"}, []string{"method", "result"}),
		GeocodeEnabled:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "placepoint", Name: "geocode_enabled"}),
		DebouncedRequests:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "placepoint", Name: "autocomplete_debounced_requests_total"}),
		StaleDrops:              prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "placepoint", Name: "session_stale_drops_total"}, []string{"session"}),
		SessionRetries:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "placepoint", Name: "session_retries_total"}, []string{"session"}),
		PinTransitions:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "placepoint", Name: "pin_transitions_total"}, []string{"state"}),
		SuggestionRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "placepoint", Name: "suggestion_requests_total"}, []string{"outcome"}),
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "placepoint", Name: "messages_consumed_total"}),
		MessagesProduced:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "placepoint", Name: "messages_produced_total"}),
		TransformErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "placepoint", Name: "transform_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "placepoint", Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "placepoint", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "placepoint", Name: "batch_processing_duration_seconds"}),
	}
}
