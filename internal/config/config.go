package config

import (
	"time"

	"github.com/wildcast/wildcast/internal/models"
)

// Venue is the fixed geographic point the weather sources are queried for.
type Venue struct {
	Name        string
	Description string
	Latitude    float64
	Longitude   float64
	Elevation   float64
}

// Config carries the resolved runtime settings for the forecasting pipeline.
// The fallback weather pair is the single source of the default constants;
// every fallback path reads it from here.
type Config struct {
	Venue          Venue
	Timezone       *time.Location
	HolidayCountry string

	// FallbackWeather is used whenever the live forecast source is
	// unavailable or has no entry for a date, and for the whole 30-day
	// trend horizon.
	FallbackWeather models.DayWeather
}

// Today returns the current calendar date in the venue's timezone, truncated
// to midnight UTC so it compares cleanly with stored dates.
func (c *Config) Today() time.Time {
	now := time.Now().In(c.Timezone)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Default returns the Safari Park configuration the system ships with.
func Default() *Config {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.UTC
	}
	return &Config{
		Venue: Venue{
			Name:        "Safari Park",
			Description: "San Diego Safari Park, located in Escondido, California.",
			Latitude:    33.0980,
			Longitude:   -116.9967,
			Elevation:   150,
		},
		Timezone:        loc,
		HolidayCountry:  "US",
		FallbackWeather: models.DayWeather{HighTempF: 75.0, PrecipMM: 0.0},
	}
}
