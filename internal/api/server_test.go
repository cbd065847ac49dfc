package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wildcast/wildcast/internal/config"
	"github.com/wildcast/wildcast/internal/models"
	"github.com/wildcast/wildcast/internal/predict"
	"github.com/wildcast/wildcast/internal/store"
)

type stubHistory struct{}

func (stubHistory) FetchRange(ctx context.Context, start, end time.Time) ([]models.DailyWeather, error) {
	var out []models.DailyWeather
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, models.DailyWeather{Date: d, HighTempF: 70, PrecipMM: 0})
	}
	return out, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, target time.Time) models.DayWeather {
	return models.DayWeather{HighTempF: 75, PrecipMM: 0}
}

func (stubResolver) ResolveDays(ctx context.Context, targets []time.Time) []models.DayWeather {
	out := make([]models.DayWeather, len(targets))
	for i := range out {
		out[i] = models.DayWeather{HighTempF: 75, PrecipMM: 0}
	}
	return out
}

type stubDaySource struct {
	weather models.DayWeather
	calls   int
}

func (s *stubDaySource) FetchDay(ctx context.Context, date time.Time, fallback models.DayWeather) models.DayWeather {
	s.calls++
	return s.weather
}

func setupServer(t *testing.T, historyDays int) (*Server, *store.Store, int64, *stubDaySource) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db, time.UTC)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Default()
	locID, err := st.UpsertLocation(models.Location{Name: cfg.Venue.Name})
	if err != nil {
		t.Fatalf("seed location: %v", err)
	}

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < historyDays; i++ {
		obs := models.Observation{Date: start.AddDate(0, 0, i), LocationID: locID, Count: int64(1000 + 10*i)}
		if err := st.UpsertObservation(obs); err != nil {
			t.Fatalf("seed observation %d: %v", i, err)
		}
	}

	svc := predict.NewService(cfg, st, stubHistory{}, stubResolver{}, locID)
	day := &stubDaySource{weather: models.DayWeather{HighTempF: 68, PrecipMM: 3.2}}
	srv := NewServer(cfg, st, svc, day, locID, "0")
	return srv, st, locID, day
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := setupServer(t, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestSevenDayJSON(t *testing.T) {
	srv, st, locID, _ := setupServer(t, 0)

	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	preds := make([]models.Prediction, 7)
	for i := range preds {
		preds[i] = models.Prediction{
			Date:       base.AddDate(0, 0, i),
			LocationID: locID,
			Value:      float64(1200 + i),
			LowerBound: float64(1100 + i),
			UpperBound: float64(1300 + i),
			HighTempF:  sql.NullFloat64{Float64: 72, Valid: true},
			PrecipMM:   sql.NullFloat64{Float64: 0.5, Valid: true},
		}
	}
	if err := st.ReplacePredictions(models.FamilySevenDay, locID, preds); err != nil {
		t.Fatalf("seed predictions: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predictions/7day", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var out []predictionJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 7 {
		t.Fatalf("len = %d, want 7", len(out))
	}
	if out[0].Date != "2024-03-10" {
		t.Errorf("first date = %q, want 2024-03-10", out[0].Date)
	}
	if out[0].HighTempF == nil || *out[0].HighTempF != 72 {
		t.Errorf("HighTempF = %v, want 72", out[0].HighTempF)
	}
	if out[0].PrecipMM == nil || *out[0].PrecipMM != 0.5 {
		t.Errorf("PrecipMM = %v, want 0.5", out[0].PrecipMM)
	}
}

func TestLongRangeJSON_OmitsWeather(t *testing.T) {
	srv, st, locID, _ := setupServer(t, 0)

	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	preds := []models.Prediction{{
		Date:       base,
		LocationID: locID,
		Value:      1200,
		LowerBound: 1100,
		UpperBound: 1300,
	}}
	if err := st.ReplacePredictions(models.FamilyLongRange, locID, preds); err != nil {
		t.Fatalf("seed predictions: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predictions/longrange", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "high_temp_f") {
		t.Errorf("long range body includes weather fields: %s", rec.Body.String())
	}
}

func TestPredictionsEmpty(t *testing.T) {
	srv, _, _, _ := setupServer(t, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predictions/7day", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestInputPost(t *testing.T) {
	srv, st, locID, day := setupServer(t, 0)

	form := url.Values{"date": {"2024-03-15"}, "attendance": {"1,234"}}
	req := httptest.NewRequest(http.MethodPost, "/input", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if day.calls != 1 {
		t.Errorf("FetchDay calls = %d, want 1", day.calls)
	}

	obs, err := st.GetObservations(locID)
	if err != nil {
		t.Fatalf("GetObservations: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("len = %d, want 1 saved entry", len(obs))
	}
	if obs[0].Count != 1234 {
		t.Errorf("Count = %d, want comma-stripped 1234", obs[0].Count)
	}
	if !obs[0].HighTempF.Valid || obs[0].HighTempF.Float64 != 68 {
		t.Errorf("HighTempF = %+v, want enrichment weather 68", obs[0].HighTempF)
	}
	if !obs[0].PrecipMM.Valid || obs[0].PrecipMM.Float64 != 3.2 {
		t.Errorf("PrecipMM = %+v, want enrichment weather 3.2", obs[0].PrecipMM)
	}
}

func TestInputPost_BadData(t *testing.T) {
	srv, st, locID, _ := setupServer(t, 0)

	for _, form := range []url.Values{
		{"date": {"tomorrow"}, "attendance": {"1200"}},
		{"date": {"2024-03-15"}, "attendance": {"-5"}},
		{"date": {"2024-03-15"}},
	} {
		req := httptest.NewRequest(http.MethodPost, "/input", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("form %v: status = %d, want 200 with inline error", form, rec.Code)
		}
	}

	obs, err := st.GetObservations(locID)
	if err != nil {
		t.Fatalf("GetObservations: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("len = %d, want 0 (bad entries rejected)", len(obs))
	}
}

func TestIndex_NoHistoryShowsError(t *testing.T) {
	srv, _, _, _ := setupServer(t, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Not enough attendance history") {
		t.Errorf("body should carry the empty-history notice")
	}
}

func TestIndex_WithHistory(t *testing.T) {
	srv, _, _, _ := setupServer(t, 30)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, srv.cfg.Venue.Name) {
		t.Errorf("body should name the venue")
	}
	if strings.Contains(body, "Not enough attendance history") {
		t.Errorf("body carries the empty-history notice despite seeded history")
	}
}

func TestChartPNG(t *testing.T) {
	srv, _, _, _ := setupServer(t, 30)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chart.png", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	body := rec.Body.Bytes()
	if len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Errorf("body does not look like a PNG (%d bytes)", len(body))
	}
}

func TestUnknownPath(t *testing.T) {
	srv, _, _, _ := setupServer(t, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
