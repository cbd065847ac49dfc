// Package forecast implements the additive attendance model: a linear trend
// plus yearly and weekly Fourier seasonality, per-holiday effects, and
// optional linear weather regressors, fit by ridge-regularized least squares.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wildcast/wildcast/internal/metrics"
)

var (
	// ErrInsufficientData is returned by Fit when the history is too short
	// to model a trend. The pipeline surfaces this rather than fabricating
	// a forecast.
	ErrInsufficientData = errors.New("forecast: insufficient training data")

	// ErrRegressorMismatch is returned by Predict when a future row does not
	// carry a regressor the model was fit with. It indicates a caller bug,
	// not a data problem, and is never masked.
	ErrRegressorMismatch = errors.New("forecast: regressor mismatch between fit and predict")
)

// minTrainingDays is one full weekly period; anything shorter cannot support
// even the trend-plus-holiday fit.
const minTrainingDays = 7

// Seasonality components switch on only when the history spans at least two
// full periods, so short synthetic series degrade to trend plus holidays
// instead of producing unstable coefficients.
const (
	minWeeklySpanDays = 14
	minYearlySpanDays = 730
)

// intervalZ is the standard normal quantile for the 80% uncertainty interval.
const intervalZ = 1.2816

// Options configures a Model. Zero regressors gives the attendance-only
// model used for the long horizons.
type Options struct {
	Regressors          []string
	RegressorPriorScale float64
	HolidayCountry      string
	Floor               float64
}

// Row is one training observation.
type Row struct {
	Date       time.Time
	Attendance float64
	Regressors map[string]float64
}

// FutureRow is one date to predict, carrying the covariates the model needs.
type FutureRow struct {
	Date       time.Time
	Regressors map[string]float64
}

// Point is one predicted day with its uncertainty interval.
type Point struct {
	Date       time.Time
	Value      float64
	LowerBound float64
	UpperBound float64
}

// Model holds the fitted regression state. It lives for one fit-predict
// cycle; nothing is persisted and there is no incremental update.
type Model struct {
	opts   Options
	fb     featureBuilder
	coef   []float64
	sigma  float64
	yScale float64
	fitted bool
}

func New(opts Options) *Model {
	if opts.RegressorPriorScale <= 0 {
		opts.RegressorPriorScale = 0.1
	}
	return &Model{opts: opts}
}

// Fit estimates the model from the training rows, mutating the model in
// place. It fails with ErrInsufficientData when fewer than minTrainingDays
// distinct dates are present.
func (m *Model) Fit(rows []Row) error {
	started := time.Now()

	distinct := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		distinct[r.Date.Format("2006-01-02")] = struct{}{}
	}
	if len(distinct) < minTrainingDays {
		return fmt.Errorf("%w: %d distinct dates, need %d", ErrInsufficientData, len(distinct), minTrainingDays)
	}

	first, last := rows[0].Date, rows[0].Date
	for _, r := range rows {
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	span := last.Sub(first).Hours() / 24.0
	if span <= 0 {
		span = 1
	}

	m.fb = featureBuilder{
		t0:         first,
		tSpan:      span,
		yearly:     span >= minYearlySpanDays,
		weekly:     span >= minWeeklySpanDays,
		country:    m.opts.HolidayCountry,
		holidays:   holidayNames(m.opts.HolidayCountry),
		regressors: m.opts.Regressors,
		regMean:    map[string]float64{},
		regScale:   map[string]float64{},
	}

	for _, name := range m.opts.Regressors {
		var sum, sumSq float64
		for _, r := range rows {
			v, ok := r.Regressors[name]
			if !ok {
				return fmt.Errorf("%w: training row %s missing regressor %q",
					ErrRegressorMismatch, r.Date.Format("2006-01-02"), name)
			}
			sum += v
			sumSq += v * v
		}
		n := float64(len(rows))
		mean := sum / n
		variance := sumSq/n - mean*mean
		scale := math.Sqrt(math.Max(variance, 0))
		if scale < 1e-9 {
			scale = 1
		}
		m.fb.regMean[name] = mean
		m.fb.regScale[name] = scale
	}

	// Normalize attendance by its largest magnitude so the penalty weights
	// mean the same thing regardless of venue size.
	m.yScale = 1
	for _, r := range rows {
		if v := math.Abs(r.Attendance); v > m.yScale {
			m.yScale = v
		}
	}

	design := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x, err := m.fb.row(r.Date, r.Regressors)
		if err != nil {
			return err
		}
		design[i] = x
		y[i] = r.Attendance / m.yScale
	}

	coef, err := solveRidge(design, y, m.fb.penalties(m.opts.RegressorPriorScale))
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	m.coef = coef

	var sse float64
	for i, x := range design {
		resid := y[i] - dot(x, coef)
		sse += resid * resid
	}
	m.sigma = math.Sqrt(sse / float64(len(rows)))
	m.fitted = true

	shape := "attendance_only"
	if len(m.opts.Regressors) > 0 {
		shape = "with_weather"
	}
	metrics.ModelFits.WithLabelValues(shape).Inc()
	metrics.ModelFitDuration.Observe(time.Since(started).Seconds())

	return nil
}

// Predict returns a point estimate and uncertainty interval per future row.
// Every row must carry the regressors used at fit time or the call fails with
// ErrRegressorMismatch. The configured floor is applied to the estimate and
// the lower bound.
func (m *Model) Predict(futures []FutureRow) ([]Point, error) {
	if !m.fitted {
		return nil, errors.New("forecast: Predict called before Fit")
	}

	points := make([]Point, 0, len(futures))
	for _, f := range futures {
		x, err := m.fb.row(f.Date, f.Regressors)
		if err != nil {
			return nil, err
		}
		yhat := dot(x, m.coef) * m.yScale
		half := intervalZ * m.sigma * m.yScale

		p := Point{
			Date:       f.Date,
			Value:      math.Max(m.opts.Floor, yhat),
			LowerBound: math.Max(m.opts.Floor, yhat-half),
			UpperBound: yhat + half,
		}
		if p.UpperBound < p.Value {
			p.UpperBound = p.Value
		}
		points = append(points, p)
	}
	return points, nil
}
