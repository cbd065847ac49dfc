// Package predict hosts the horizon generators. All of them share one
// forecasting service so the dataset-build / fit / predict sequence exists in
// a single place: the model is fit at most once per dataset shape per run and
// the fitted state is passed to every horizon that needs it.
package predict

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/wildcast/wildcast/internal/config"
	"github.com/wildcast/wildcast/internal/forecast"
	"github.com/wildcast/wildcast/internal/metrics"
	"github.com/wildcast/wildcast/internal/models"
	"github.com/wildcast/wildcast/internal/store"
)

// Horizon lengths. The seven-day and long-range results are persisted; the
// 30-day trend only feeds the dashboard chart.
const (
	WeekDays      = 7
	TrendDays     = 30
	LongRangeDays = 365
)

// HistorySource supplies historical weather for the training span.
type HistorySource interface {
	FetchRange(ctx context.Context, start, end time.Time) ([]models.DailyWeather, error)
}

// Resolver supplies future weather with fallback semantics.
type Resolver interface {
	Resolve(ctx context.Context, target time.Time) models.DayWeather
	ResolveDays(ctx context.Context, targets []time.Time) []models.DayWeather
}

// DayPrediction is one forecast day as returned to callers, weather included.
type DayPrediction struct {
	Date       time.Time
	Value      float64
	LowerBound float64
	UpperBound float64
	HighTempF  float64
	PrecipMM   float64
}

// WeekForecast is the rolling seven-day result with its extremes picked out.
type WeekForecast struct {
	Days    []DayPrediction
	Busiest DayPrediction
	Slowest DayPrediction
}

type Service struct {
	cfg        *config.Config
	store      *store.Store
	history    HistorySource
	resolver   Resolver
	locationID int64
}

func NewService(cfg *config.Config, st *store.Store, history HistorySource, resolver Resolver, locationID int64) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		history:    history,
		resolver:   resolver,
		locationID: locationID,
	}
}

// fitWithWeather reads the full history, joins it with historical weather for
// the same span, and fits the two-regressor model. A historical-source outage
// degrades to the weather stored on the observation rows rather than blocking
// the run.
func (s *Service) fitWithWeather(ctx context.Context) (*forecast.Model, error) {
	obs, err := s.store.GetObservations(s.locationID)
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	if len(obs) == 0 {
		return nil, forecast.ErrInsufficientData
	}

	var wx []models.DailyWeather
	start, end := obs[0].Date, obs[len(obs)-1].Date
	if wx, err = s.history.FetchRange(ctx, start, end); err != nil {
		log.Printf("predict: historical weather unavailable, using stored observation weather: %v", err)
		wx = nil
	}

	m := forecast.New(forecast.Options{
		Regressors:          forecast.WeatherRegressors,
		RegressorPriorScale: 0.1,
		HolidayCountry:      s.cfg.HolidayCountry,
		Floor:               0,
	})
	if err := m.Fit(forecast.BuildWithWeather(obs, wx)); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) fitAttendanceOnly() (*forecast.Model, error) {
	obs, err := s.store.GetObservations(s.locationID)
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}

	m := forecast.New(forecast.Options{
		HolidayCountry: s.cfg.HolidayCountry,
		Floor:          0,
	})
	if err := m.Fit(forecast.BuildAttendanceOnly(obs)); err != nil {
		return nil, err
	}
	return m, nil
}

// PredictDate forecasts attendance for one date, resolving its weather
// through the fallback chain.
func (s *Service) PredictDate(ctx context.Context, date time.Time) (DayPrediction, error) {
	m, err := s.fitWithWeather(ctx)
	if err != nil {
		return DayPrediction{}, err
	}
	return s.predictDays(ctx, m, []time.Time{date}, nil)
}

// predictDays runs the fitted model over the given dates. If week is non-nil
// the per-day results are appended to it; the return value is always the
// first day (callers wanting one day pass one date).
func (s *Service) predictDays(ctx context.Context, m *forecast.Model, dates []time.Time, week *[]DayPrediction) (DayPrediction, error) {
	wxs := s.resolver.ResolveDays(ctx, dates)

	futures := make([]forecast.FutureRow, len(dates))
	for i, d := range dates {
		futures[i] = forecast.FutureRow{
			Date: d,
			Regressors: map[string]float64{
				forecast.RegressorHighTemp: wxs[i].HighTempF,
				forecast.RegressorPrecip:   wxs[i].PrecipMM,
			},
		}
	}

	points, err := m.Predict(futures)
	if err != nil {
		return DayPrediction{}, err
	}

	days := make([]DayPrediction, len(points))
	for i, p := range points {
		days[i] = DayPrediction{
			Date:       p.Date,
			Value:      p.Value,
			LowerBound: p.LowerBound,
			UpperBound: p.UpperBound,
			HighTempF:  wxs[i].HighTempF,
			PrecipMM:   wxs[i].PrecipMM,
		}
	}
	if week != nil {
		*week = days
	}
	return days[0], nil
}

// NextWeek forecasts today through today+6, resolving weather per day from a
// single upfront live fetch, and picks the busiest and slowest days by strict
// maximum and minimum point estimate, first occurrence winning ties.
func (s *Service) NextWeek(ctx context.Context, asOf time.Time) (WeekForecast, error) {
	m, err := s.fitWithWeather(ctx)
	if err != nil {
		return WeekForecast{}, err
	}
	return s.nextWeek(ctx, m, asOf)
}

func (s *Service) nextWeek(ctx context.Context, m *forecast.Model, asOf time.Time) (WeekForecast, error) {
	dates := make([]time.Time, WeekDays)
	for i := range dates {
		dates[i] = asOf.AddDate(0, 0, i)
	}

	var days []DayPrediction
	if _, err := s.predictDays(ctx, m, dates, &days); err != nil {
		return WeekForecast{}, err
	}

	busiest, slowest := pickExtremes(days)
	return WeekForecast{Days: days, Busiest: days[busiest], Slowest: days[slowest]}, nil
}

// pickExtremes returns the busiest and slowest indices by strict maximum and
// minimum point estimate. On equal values the earliest day wins.
func pickExtremes(days []DayPrediction) (busiest, slowest int) {
	for i, d := range days {
		if d.Value > days[busiest].Value {
			busiest = i
		}
		if d.Value < days[slowest].Value {
			slowest = i
		}
	}
	return busiest, slowest
}

// Trend30 forecasts 30 consecutive days from asOf with the default weather
// pair held constant; no live forecast extends that far. The result feeds the
// chart only and is never persisted.
func (s *Service) Trend30(ctx context.Context, asOf time.Time) ([]forecast.Point, error) {
	m, err := s.fitWithWeather(ctx)
	if err != nil {
		return nil, err
	}

	futures := make([]forecast.FutureRow, TrendDays)
	for i := range futures {
		futures[i] = forecast.FutureRow{
			Date: asOf.AddDate(0, 0, i),
			Regressors: map[string]float64{
				forecast.RegressorHighTemp: s.cfg.FallbackWeather.HighTempF,
				forecast.RegressorPrecip:   s.cfg.FallbackWeather.PrecipMM,
			},
		}
	}
	return m.Predict(futures)
}

// Dashboard bundles everything the homepage shows from a single model fit:
// the rolling week (today and tomorrow are its first two days) and the
// 30-day default-weather trend for the chart.
type Dashboard struct {
	Week  WeekForecast
	Trend []forecast.Point
}

func (s *Service) GetDashboard(ctx context.Context, asOf time.Time) (Dashboard, error) {
	m, err := s.fitWithWeather(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	week, err := s.nextWeek(ctx, m, asOf)
	if err != nil {
		return Dashboard{}, err
	}

	futures := make([]forecast.FutureRow, TrendDays)
	for i := range futures {
		futures[i] = forecast.FutureRow{
			Date: asOf.AddDate(0, 0, i),
			Regressors: map[string]float64{
				forecast.RegressorHighTemp: s.cfg.FallbackWeather.HighTempF,
				forecast.RegressorPrecip:   s.cfg.FallbackWeather.PrecipMM,
			},
		}
	}
	trend, err := m.Predict(futures)
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{Week: week, Trend: trend}, nil
}

// Regenerate rebuilds both persisted prediction families from the current
// history: the seven-day family from the with-weather model and the 365-day
// family from the attendance-only one. Each family is swapped wholesale in
// its own transaction; a failed run leaves the prior contents intact.
func (s *Service) Regenerate(ctx context.Context, asOf time.Time) error {
	m, err := s.fitWithWeather(ctx)
	if err != nil {
		return fmt.Errorf("fit with-weather model: %w", err)
	}

	week, err := s.nextWeek(ctx, m, asOf)
	if err != nil {
		return fmt.Errorf("seven-day horizon: %w", err)
	}

	sevenDay := make([]models.Prediction, len(week.Days))
	for i, d := range week.Days {
		sevenDay[i] = models.Prediction{
			Date:       d.Date,
			LocationID: s.locationID,
			Value:      d.Value,
			LowerBound: d.LowerBound,
			UpperBound: d.UpperBound,
			HighTempF:  nullFloat(d.HighTempF),
			PrecipMM:   nullFloat(d.PrecipMM),
		}
	}
	if err := s.store.ReplacePredictions(models.FamilySevenDay, s.locationID, sevenDay); err != nil {
		return fmt.Errorf("replace seven-day predictions: %w", err)
	}
	metrics.PredictionsWritten.WithLabelValues(models.FamilySevenDay).Add(float64(len(sevenDay)))

	long, err := s.fitAttendanceOnly()
	if err != nil {
		return fmt.Errorf("fit attendance-only model: %w", err)
	}

	futures := make([]forecast.FutureRow, LongRangeDays)
	for i := range futures {
		futures[i] = forecast.FutureRow{Date: asOf.AddDate(0, 0, i)}
	}
	points, err := long.Predict(futures)
	if err != nil {
		return fmt.Errorf("long-range horizon: %w", err)
	}

	longRange := make([]models.Prediction, len(points))
	for i, p := range points {
		longRange[i] = models.Prediction{
			Date:       p.Date,
			LocationID: s.locationID,
			Value:      p.Value,
			LowerBound: p.LowerBound,
			UpperBound: p.UpperBound,
		}
	}
	if err := s.store.ReplacePredictions(models.FamilyLongRange, s.locationID, longRange); err != nil {
		return fmt.Errorf("replace long-range predictions: %w", err)
	}
	metrics.PredictionsWritten.WithLabelValues(models.FamilyLongRange).Add(float64(len(longRange)))

	log.Printf("predict: regenerated %d seven-day and %d long-range predictions", len(sevenDay), len(longRange))
	return nil
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}
