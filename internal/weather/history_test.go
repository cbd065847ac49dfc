package weather

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestHistoryClient(baseURL string) *HistoryClient {
	c := NewHistoryClient(33.0980, -116.9967, 150)
	c.baseURL = baseURL
	return c
}

func TestHistoryClient_FetchRange(t *testing.T) {
	// Three-day request: day two has a null tmax, day three is missing from
	// the source entirely.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"daily": {
			"time": ["2024-03-01", "2024-03-02"],
			"temperature_2m_max": [20.0, null],
			"precipitation_sum": [1.5, 3.0]
		}}`)
	}))
	defer srv.Close()

	client := newTestHistoryClient(srv.URL)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	rows, err := client.FetchRange(context.Background(), start, end)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3 (one per calendar day, gaps filled)", len(rows))
	}
	for i, row := range rows {
		want := start.AddDate(0, 0, i)
		if !row.Date.Equal(want) {
			t.Errorf("rows[%d].Date = %s, want %s (ascending, no gaps)", i, row.Date, want)
		}
	}

	// 20C -> 68F.
	if math.Abs(rows[0].HighTempF-68.0) > 1e-9 {
		t.Errorf("rows[0].HighTempF = %v, want 68", rows[0].HighTempF)
	}
	if rows[0].PrecipMM != 1.5 {
		t.Errorf("rows[0].PrecipMM = %v, want 1.5", rows[0].PrecipMM)
	}

	// Null tmax zero-fills before conversion: 0C -> 32F.
	if math.Abs(rows[1].HighTempF-32.0) > 1e-9 {
		t.Errorf("rows[1].HighTempF = %v, want 32 (null zero-filled pre-conversion)", rows[1].HighTempF)
	}
	if rows[1].PrecipMM != 3.0 {
		t.Errorf("rows[1].PrecipMM = %v, want 3.0", rows[1].PrecipMM)
	}

	// Day absent from the source is zero-filled too.
	if math.Abs(rows[2].HighTempF-32.0) > 1e-9 {
		t.Errorf("rows[2].HighTempF = %v, want 32 (missing day zero-filled)", rows[2].HighTempF)
	}
	if rows[2].PrecipMM != 0 {
		t.Errorf("rows[2].PrecipMM = %v, want 0", rows[2].PrecipMM)
	}
}

func TestHistoryClient_FetchRangeClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestHistoryClient(srv.URL)
	_, err := client.FetchRange(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("FetchRange should fail on 4xx without retry")
	}
}

func TestHistoryClient_FetchDayFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestHistoryClient(srv.URL)
	got := client.FetchDay(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), testDefaults)
	if got != testDefaults {
		t.Errorf("FetchDay = %+v, want defaults %+v", got, testDefaults)
	}
}

func TestCelsiusToFahrenheit(t *testing.T) {
	tests := []struct {
		c    float64
		want float64
	}{
		{0, 32},
		{100, 212},
		{-40, -40},
		{20, 68},
	}
	for _, tt := range tests {
		if got := celsiusToFahrenheit(tt.c); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("celsiusToFahrenheit(%v) = %v, want %v", tt.c, got, tt.want)
		}
	}
}
