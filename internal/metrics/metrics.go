package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildcast_weather_api_calls_total",
			Help: "External weather API calls by source and HTTP status",
		},
		[]string{"source", "status"},
	)

	WeatherFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wildcast_weather_fallbacks_total",
			Help: "Times default weather was substituted for live or historical data",
		},
	)

	ModelFits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildcast_model_fits_total",
			Help: "Forecast model fits by dataset shape",
		},
		[]string{"shape"},
	)

	ModelFitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wildcast_model_fit_duration_seconds",
			Help:    "Time spent fitting the forecast model",
			Buckets: prometheus.DefBuckets,
		},
	)

	PredictionsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wildcast_predictions_written_total",
			Help: "Prediction rows written per family",
		},
		[]string{"family"},
	)
)
