package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wildcast/wildcast/internal/httputil"
	"github.com/wildcast/wildcast/internal/metrics"
	"github.com/wildcast/wildcast/internal/models"
)

const (
	pointsBaseURL = "https://api.weather.gov"
	userAgent     = "WildCast/1.0 (attendance forecasting)"
)

// Precipitation is not numerically provided by the forecast source; it is
// inferred from the forecast text. Values approximate 0.5, 0.1 and 0.25
// inches in millimetres.
const (
	precipHeavyMM    = 12.7
	precipLightMM    = 2.5
	precipModerateMM = 6.4
)

// ForecastClient fetches the short-range daily forecast from the national
// grid-forecast service. The contract takes two round trips: resolve the
// venue coordinate to a grid forecast URL, then fetch the period list.
type ForecastClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
	lat     float64
	lon     float64
}

func NewForecastClient(lat, lon float64) *ForecastClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "weather-gov",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &ForecastClient{
		client:  httputil.NewClient(),
		breaker: cb,
		baseURL: pointsBaseURL,
		lat:     lat,
		lon:     lon,
	}
}

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

type forecastPeriod struct {
	StartTime        string `json:"startTime"`
	IsDaytime        bool   `json:"isDaytime"`
	Temperature      int    `json:"temperature"`
	ShortForecast    string `json:"shortForecast"`
	DetailedForecast string `json:"detailedForecast"`
}

// Fetch returns one ForecastPoint per calendar day, daytime values only.
// Any non-success status, transport failure, or parse failure is total
// unavailability: nil points and a non-nil error, no partial results and no
// retry. Repeated failures open the breaker, which short-circuits further
// calls for a minute.
func (f *ForecastClient) Fetch(ctx context.Context) ([]models.ForecastPoint, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.ForecastPoint), nil
}

func (f *ForecastClient) fetch(ctx context.Context) ([]models.ForecastPoint, error) {
	pointsURL := fmt.Sprintf("%s/points/%.4f,%.4f", f.baseURL, f.lat, f.lon)

	var points pointsResponse
	if err := f.getJSON(ctx, pointsURL, &points); err != nil {
		return nil, fmt.Errorf("resolve grid point: %w", err)
	}
	if points.Properties.Forecast == "" {
		return nil, fmt.Errorf("resolve grid point: no forecast URL in response")
	}

	var fc forecastResponse
	if err := f.getJSON(ctx, points.Properties.Forecast, &fc); err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	var out []models.ForecastPoint
	for _, p := range fc.Properties.Periods {
		if !p.IsDaytime {
			continue
		}
		if len(p.StartTime) < 10 {
			continue
		}
		date, err := time.Parse("2006-01-02", p.StartTime[:10])
		if err != nil {
			continue
		}
		out = append(out, models.ForecastPoint{
			Date:        date,
			TempF:       float64(p.Temperature),
			PrecipMM:    InferPrecip(p.DetailedForecast),
			Description: p.ShortForecast,
		})
	}
	return out, nil
}

func (f *ForecastClient) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.WeatherAPICalls.WithLabelValues("forecast", "error").Inc()
		return err
	}
	defer resp.Body.Close()

	metrics.WeatherAPICalls.WithLabelValues("forecast", fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// InferPrecip estimates precipitation in millimetres from forecast text.
// Three tiers keyed on "heavy" and "light"; any other rain or shower mention
// gets the moderate value.
func InferPrecip(description string) float64 {
	text := strings.ToLower(description)
	if !strings.Contains(text, "rain") && !strings.Contains(text, "shower") {
		return 0.0
	}
	if strings.Contains(text, "heavy") {
		return precipHeavyMM
	}
	if strings.Contains(text, "light") {
		return precipLightMM
	}
	return precipModerateMM
}
