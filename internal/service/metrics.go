package service

import "github.com/prometheus/client_golang/prometheus"

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classd",
			Subsystem: "inference",
			Name:      "predictions_total",
			Help:      "Total predictions by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	predictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "classd",
			Subsystem: "inference",
			Name:      "prediction_duration_seconds",
			Help:      "Backend prediction duration in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(predictionsTotal, predictionDuration)
}
