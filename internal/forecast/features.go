package forecast

import (
	"fmt"
	"math"
	"time"
)

// Seasonality is expressed as truncated Fourier series over the day index,
// the same decomposition the reference additive models use: order-10 yearly
// terms and order-3 weekly terms.
const (
	yearlyOrder  = 10
	weeklyOrder  = 3
	yearlyPeriod = 365.25
	weeklyPeriod = 7.0
)

// featureBuilder maps a calendar date (plus regressor values) onto the design
// matrix row for the fitted configuration. Layout: intercept, trend, yearly
// Fourier pairs, weekly Fourier pairs, holiday indicators, regressors.
type featureBuilder struct {
	t0       time.Time
	tSpan    float64 // days covered by training, for trend normalization
	yearly   bool
	weekly   bool
	country  string
	holidays []string

	regressors []string
	regMean    map[string]float64
	regScale   map[string]float64
}

func (fb *featureBuilder) width() int {
	w := 2 // intercept + trend
	if fb.yearly {
		w += 2 * yearlyOrder
	}
	if fb.weekly {
		w += 2 * weeklyOrder
	}
	w += len(fb.holidays)
	w += len(fb.regressors)
	return w
}

func (fb *featureBuilder) row(date time.Time, regs map[string]float64) ([]float64, error) {
	x := make([]float64, 0, fb.width())

	days := date.Sub(fb.t0).Hours() / 24.0
	x = append(x, 1.0, days/fb.tSpan)

	if fb.yearly {
		x = appendFourier(x, days, yearlyPeriod, yearlyOrder)
	}
	if fb.weekly {
		x = appendFourier(x, days, weeklyPeriod, weeklyOrder)
	}

	name, isHoliday := holidayFor(fb.country, date)
	for _, h := range fb.holidays {
		if isHoliday && h == name {
			x = append(x, 1.0)
		} else {
			x = append(x, 0.0)
		}
	}

	for _, r := range fb.regressors {
		v, ok := regs[r]
		if !ok {
			return nil, fmt.Errorf("%w: missing regressor %q", ErrRegressorMismatch, r)
		}
		x = append(x, (v-fb.regMean[r])/fb.regScale[r])
	}

	return x, nil
}

func appendFourier(x []float64, days, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		angle := 2 * math.Pi * float64(k) * days / period
		x = append(x, math.Sin(angle), math.Cos(angle))
	}
	return x
}

// penalties returns the per-coefficient ridge weights. Trend and intercept
// are effectively unpenalized; seasonal and holiday terms get the standard
// weak prior; regressors get the configured prior scale, where a smaller
// scale means a tighter prior and a heavier penalty.
func (fb *featureBuilder) penalties(regressorPriorScale float64) []float64 {
	const (
		freeTerm      = 1e-8
		seasonalPrior = 10.0
	)
	seasonalPenalty := 1.0 / (seasonalPrior * seasonalPrior)
	regPenalty := 1.0 / (regressorPriorScale * regressorPriorScale)

	p := make([]float64, 0, fb.width())
	p = append(p, freeTerm, freeTerm)
	if fb.yearly {
		for k := 0; k < 2*yearlyOrder; k++ {
			p = append(p, seasonalPenalty)
		}
	}
	if fb.weekly {
		for k := 0; k < 2*weeklyOrder; k++ {
			p = append(p, seasonalPenalty)
		}
	}
	for range fb.holidays {
		p = append(p, seasonalPenalty)
	}
	for range fb.regressors {
		p = append(p, regPenalty)
	}
	return p
}

// solveRidge solves (XᵀX + diag(penalty)) β = Xᵀy by Cholesky decomposition.
func solveRidge(rows [][]float64, y []float64, penalty []float64) ([]float64, error) {
	n := len(penalty)

	ata := make([][]float64, n)
	for i := range ata {
		ata[i] = make([]float64, n)
	}
	aty := make([]float64, n)

	for r, row := range rows {
		for i := 0; i < n; i++ {
			aty[i] += row[i] * y[r]
			for j := i; j < n; j++ {
				ata[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < n; i++ {
		ata[i][i] += penalty[i]
		for j := 0; j < i; j++ {
			ata[i][j] = ata[j][i]
		}
	}

	chol, err := cholesky(ata)
	if err != nil {
		return nil, err
	}
	return cholSolve(chol, aty), nil
}

// cholesky factors a symmetric positive-definite matrix into L·Lᵀ.
func cholesky(a [][]float64) ([][]float64, error) {
	n := len(a)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, fmt.Errorf("matrix not positive definite at %d", i)
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, nil
}

// cholSolve solves L·Lᵀ·x = b by forward then backward substitution.
func cholSolve(l [][]float64, b []float64) []float64 {
	n := len(b)

	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * z[k]
		}
		z[i] = sum / l[i][i]
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for k := i + 1; k < n; k++ {
			sum -= l[k][i] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
