package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results used as the "result" label of LookupsTotal.
// LookupsTotal 的 "result" 标签取值。
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupError   = "error"
	LookupSkipped = "skipped"
)

var (
	// Feed metrics
	LinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netxmap_feed_lines_total",
			Help: "Total non-empty lines read from the traffic log",
		},
	)
	DecodeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netxmap_feed_decode_errors_total",
			Help: "Total lines skipped because they are not a valid record",
		},
	)
	FilteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netxmap_feed_filtered_total",
			Help: "Total events dropped by the global feed filter",
		},
	)
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netxmap_feed_events_total",
			Help: "Total enriched events broadcast, by attack type",
		},
		[]string{"attack_type"},
	)
	PipelineState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netxmap_pipeline_state",
			Help: "Current pipeline state (1 for the active state)",
		},
		[]string{"state"},
	)
	LastEventTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netxmap_feed_last_event_timestamp_seconds",
			Help: "Unix time at which the last event was broadcast",
		},
	)

	// GeoIP metrics
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netxmap_geoip_lookups_total",
			Help: "Total location lookups by endpoint side and result",
		},
		[]string{"side", "result"},
	)
	LookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netxmap_geoip_lookup_duration_seconds",
			Help:    "Latency of location lookups",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .2, .5},
		},
	)

	// Broadcast metrics
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netxmap_broadcast_deliveries_total",
			Help: "Total per subscriber delivery attempts by outcome",
		},
		[]string{"outcome"},
	)
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netxmap_broadcast_duration_seconds",
			Help:    "Time spent fanning one event out to all subscribers",
			Buckets: prometheus.DefBuckets,
		},
	)
	SubscribersCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netxmap_subscribers",
			Help: "Number of currently registered subscribers",
		},
	)
	SubscribersPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netxmap_subscribers_pruned_total",
			Help: "Total subscribers removed after a failed delivery",
		},
	)

	// Relay metrics
	RelayPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netxmap_relay_publish_total",
			Help: "Total events published to the message bus by outcome",
		},
		[]string{"outcome"},
	)
)

// SetPipelineState marks state as the active one.
// SetPipelineState 将 state 标记为当前状态。
func SetPipelineState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		PipelineState.WithLabelValues(s).Set(v)
	}
}
