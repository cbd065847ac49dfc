package forecast

import (
	"time"

	"github.com/wildcast/wildcast/internal/models"
)

// Regressor column names shared by the dataset builders, the model options,
// and the horizon generators.
const (
	RegressorHighTemp = "high_temp"
	RegressorPrecip   = "precipitation"
)

// WeatherRegressors is the with-weather dataset shape.
var WeatherRegressors = []string{RegressorHighTemp, RegressorPrecip}

// BuildWithWeather joins the observation history with a historical weather
// series into training rows carrying both regressor columns. Observations
// arrive ordered by date and stay that way. A date missing from the weather
// series falls back to the weather stored on the observation itself, and to
// zero when that is null too.
func BuildWithWeather(obs []models.Observation, wx []models.DailyWeather) []Row {
	byDate := make(map[string]models.DailyWeather, len(wx))
	for _, w := range wx {
		byDate[dayKey(w.Date)] = w
	}

	rows := make([]Row, 0, len(obs))
	for _, o := range obs {
		temp, precip := storedWeather(o)
		if w, ok := byDate[dayKey(o.Date)]; ok {
			temp, precip = w.HighTempF, w.PrecipMM
		}
		rows = append(rows, Row{
			Date:       o.Date,
			Attendance: float64(o.Count),
			Regressors: map[string]float64{
				RegressorHighTemp: temp,
				RegressorPrecip:   precip,
			},
		})
	}
	return rows
}

// BuildAttendanceOnly drops the weather columns entirely; this is the shape
// the long-horizon model requires.
func BuildAttendanceOnly(obs []models.Observation) []Row {
	rows := make([]Row, 0, len(obs))
	for _, o := range obs {
		rows = append(rows, Row{
			Date:       o.Date,
			Attendance: float64(o.Count),
		})
	}
	return rows
}

func storedWeather(o models.Observation) (temp, precip float64) {
	if o.HighTempF.Valid {
		temp = o.HighTempF.Float64
	}
	if o.PrecipMM.Valid {
		precip = o.PrecipMM.Float64
	}
	return temp, precip
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
