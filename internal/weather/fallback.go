package weather

import (
	"context"
	"log"
	"time"

	"github.com/wildcast/wildcast/internal/metrics"
	"github.com/wildcast/wildcast/internal/models"
)

// ForecastSource is what the resolver needs from the live forecast client.
type ForecastSource interface {
	Fetch(ctx context.Context) ([]models.ForecastPoint, error)
}

// FallbackResolver turns a target date into a usable weather pair, no matter
// what the live source does. The chain is: live forecast entry for the date,
// else the configured defaults. It is a total function; failures only degrade
// forecast quality.
type FallbackResolver struct {
	source   ForecastSource
	defaults models.DayWeather
}

func NewFallbackResolver(source ForecastSource, defaults models.DayWeather) *FallbackResolver {
	return &FallbackResolver{source: source, defaults: defaults}
}

// Resolve returns the weather to assume for a single target date.
func (r *FallbackResolver) Resolve(ctx context.Context, target time.Time) models.DayWeather {
	return r.ResolveDays(ctx, []time.Time{target})[0]
}

// ResolveDays resolves several dates against one upfront live fetch. Dates
// inside the live horizon get the forecast values; dates beyond it, and every
// date when the source is unavailable, get the defaults.
func (r *FallbackResolver) ResolveDays(ctx context.Context, targets []time.Time) []models.DayWeather {
	points, err := r.source.Fetch(ctx)
	if err != nil {
		log.Printf("weather: live forecast unavailable, using defaults: %v", err)
	}

	out := make([]models.DayWeather, len(targets))
	for i, target := range targets {
		out[i] = r.defaults
		found := false
		for _, p := range points {
			if sameDay(p.Date, target) {
				out[i] = models.DayWeather{HighTempF: p.TempF, PrecipMM: p.PrecipMM}
				found = true
				break
			}
		}
		if !found {
			metrics.WeatherFallbacks.Inc()
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
