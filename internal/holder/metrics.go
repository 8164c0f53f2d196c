package holder

import "github.com/prometheus/client_golang/prometheus"

var (
	switchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classd",
			Subsystem: "holder",
			Name:      "switches_total",
			Help:      "Total model switch attempts by outcome",
		},
		[]string{"outcome"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "classd",
			Subsystem: "holder",
			Name:      "load_duration_seconds",
			Help:      "Duration of model artifact loads in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	evictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classd",
			Subsystem: "holder",
			Name:      "cache_evictions_total",
			Help:      "Total warm-cache evictions",
		},
	)

	cachedModels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "classd",
			Subsystem: "holder",
			Name:      "cached_models",
			Help:      "Models currently resident in the warm cache",
		},
	)
)

func init() {
	prometheus.MustRegister(switchesTotal, loadDuration, evictionsTotal, cachedModels)
}
