package forecast

import (
	"database/sql"
	"testing"

	"github.com/wildcast/wildcast/internal/models"
)

func obsRow(date string, count int64, temp, precip float64, hasWeather bool) models.Observation {
	o := models.Observation{
		Date:       mustDate(date),
		LocationID: 1,
		Count:      count,
	}
	if hasWeather {
		o.HighTempF = sql.NullFloat64{Float64: temp, Valid: true}
		o.PrecipMM = sql.NullFloat64{Float64: precip, Valid: true}
	}
	return o
}

func TestBuildWithWeather_JoinsByDate(t *testing.T) {
	obs := []models.Observation{
		obsRow("2024-03-01", 100, 60, 1, true),
		obsRow("2024-03-02", 110, 61, 2, true),
	}
	wx := []models.DailyWeather{
		{Date: mustDate("2024-03-01"), HighTempF: 68, PrecipMM: 0},
		{Date: mustDate("2024-03-02"), HighTempF: 72, PrecipMM: 6.4},
	}

	rows := BuildWithWeather(obs, wx)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Attendance != 100 {
		t.Errorf("rows[0].Attendance = %v, want 100", rows[0].Attendance)
	}
	// Fetched weather wins over the stored columns.
	if rows[0].Regressors[RegressorHighTemp] != 68 {
		t.Errorf("rows[0] high_temp = %v, want 68 from fetched series", rows[0].Regressors[RegressorHighTemp])
	}
	if rows[1].Regressors[RegressorPrecip] != 6.4 {
		t.Errorf("rows[1] precipitation = %v, want 6.4", rows[1].Regressors[RegressorPrecip])
	}
}

func TestBuildWithWeather_FallsBackToStoredThenZero(t *testing.T) {
	obs := []models.Observation{
		obsRow("2024-03-01", 100, 64, 2.5, true),  // stored weather, not in fetched series
		obsRow("2024-03-02", 110, 0, 0, false), // no stored weather either
	}

	rows := BuildWithWeather(obs, nil)
	if rows[0].Regressors[RegressorHighTemp] != 64 || rows[0].Regressors[RegressorPrecip] != 2.5 {
		t.Errorf("rows[0] regressors = %v, want stored observation weather", rows[0].Regressors)
	}
	if rows[1].Regressors[RegressorHighTemp] != 0 || rows[1].Regressors[RegressorPrecip] != 0 {
		t.Errorf("rows[1] regressors = %v, want zero-fill", rows[1].Regressors)
	}
}

func TestBuildAttendanceOnly_DropsWeather(t *testing.T) {
	obs := []models.Observation{
		obsRow("2024-03-01", 100, 60, 1, true),
	}

	rows := BuildAttendanceOnly(obs)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].Regressors != nil {
		t.Errorf("rows[0].Regressors = %v, want none in the attendance-only shape", rows[0].Regressors)
	}
}

func TestBuildWithWeather_PreservesOrder(t *testing.T) {
	var obs []models.Observation
	start := mustDate("2024-03-01")
	for i := 0; i < 5; i++ {
		obs = append(obs, models.Observation{Date: start.AddDate(0, 0, i), Count: int64(100 + i)})
	}

	rows := BuildWithWeather(obs, nil)
	for i := 1; i < len(rows); i++ {
		if !rows[i-1].Date.Before(rows[i].Date) {
			t.Fatalf("rows out of order at %d: %s >= %s", i, rows[i-1].Date, rows[i].Date)
		}
	}
}
