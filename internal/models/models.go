package models

import (
	"database/sql"
	"time"
)

// Location identifies the venue all time-series rows hang off. Name is the
// business key; Description is free text and the only mutable field.
type Location struct {
	ID          int64
	Name        string
	Description string
}

// Observation is one day of recorded attendance for a location, optionally
// enriched with the weather recorded for that day. At most one row exists per
// (date, location); re-entry for the same date updates in place.
type Observation struct {
	ID         int64
	Date       time.Time
	LocationID int64
	Count      int64
	HighTempF  sql.NullFloat64
	PrecipMM   sql.NullFloat64
	CreatedAt  time.Time
}

// ForecastPoint is one calendar day of the live short-range forecast. It is
// never persisted; the provider collapses day/night period pairs into the
// daytime value.
type ForecastPoint struct {
	Date        time.Time
	TempF       float64
	PrecipMM    float64
	Description string
}

// DayWeather is the normalized {temperature, precipitation} pair the fallback
// resolver hands to the horizon generators.
type DayWeather struct {
	HighTempF float64
	PrecipMM  float64
}

// DailyWeather is one day of historical weather from the archive source,
// already converted to Fahrenheit and zero-filled.
type DailyWeather struct {
	Date      time.Time
	HighTempF float64
	PrecipMM  float64
}

// Prediction families. Each family is replaced wholesale per regeneration run.
const (
	FamilySevenDay  = "seven_day"
	FamilyLongRange = "long_range"
)

// Prediction is one forecast day in a persisted family. Weather fields are
// populated for the seven-day family and null for the long-range one, which
// is fit without weather regressors.
type Prediction struct {
	ID         int64
	Date       time.Time
	LocationID int64
	Value      float64
	LowerBound float64
	UpperBound float64
	HighTempF  sql.NullFloat64
	PrecipMM   sql.NullFloat64
	CreatedAt  time.Time
}
