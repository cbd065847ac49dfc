package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wildcast/wildcast/internal/httputil"
	"github.com/wildcast/wildcast/internal/metrics"
	"github.com/wildcast/wildcast/internal/models"
)

const archiveBaseURL = "https://archive-api.open-meteo.com/v1/archive"

// HistoryClient fetches daily historical weather for the venue coordinate
// from the Open-Meteo archive API.
type HistoryClient struct {
	client    *http.Client
	baseURL   string
	lat       float64
	lon       float64
	elevation float64
}

func NewHistoryClient(lat, lon, elevation float64) *HistoryClient {
	return &HistoryClient{
		client:    httputil.NewClient(),
		baseURL:   archiveBaseURL,
		lat:       lat,
		lon:       lon,
		elevation: elevation,
	}
}

type archiveResponse struct {
	Daily struct {
		Time     []string   `json:"time"`
		TempMax  []*float64 `json:"temperature_2m_max"`
		PrecipMM []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// FetchRange returns exactly one row per calendar day in [start, end],
// ordered ascending. Daily maxima arrive in Celsius and are converted to
// Fahrenheit; missing readings and days absent from the source are
// substituted with zero before conversion.
func (h *HistoryClient) FetchRange(ctx context.Context, start, end time.Time) ([]models.DailyWeather, error) {
	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&elevation=%.0f&start_date=%s&end_date=%s&daily=temperature_2m_max,precipitation_sum&timezone=UTC",
		h.baseURL, h.lat, h.lon, h.elevation, start.Format("2006-01-02"), end.Format("2006-01-02"))

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch archive: %w", err)
		}
		defer resp.Body.Close()

		metrics.WeatherAPICalls.WithLabelValues("archive", fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("archive: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("archive: status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	var data archiveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal archive response: %w", err)
	}

	byDate := make(map[string]models.DailyWeather, len(data.Daily.Time))
	for i, day := range data.Daily.Time {
		var tmaxC, precip float64
		if i < len(data.Daily.TempMax) && data.Daily.TempMax[i] != nil {
			tmaxC = *data.Daily.TempMax[i]
		}
		if i < len(data.Daily.PrecipMM) && data.Daily.PrecipMM[i] != nil {
			precip = *data.Daily.PrecipMM[i]
		}
		d, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		byDate[day] = models.DailyWeather{
			Date:      d,
			HighTempF: celsiusToFahrenheit(tmaxC),
			PrecipMM:  precip,
		}
	}

	// Walk the full range so days the source omits are present, zero-filled.
	var out []models.DailyWeather
	for d := truncateDay(start); !d.After(truncateDay(end)); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if dw, ok := byDate[key]; ok {
			out = append(out, dw)
			continue
		}
		out = append(out, models.DailyWeather{
			Date:      d,
			HighTempF: celsiusToFahrenheit(0),
			PrecipMM:  0,
		})
	}
	return out, nil
}

// FetchDay returns the historical weather for a single date, falling back to
// the given defaults if the source is unreachable. Used to enrich manual
// attendance entries.
func (h *HistoryClient) FetchDay(ctx context.Context, date time.Time, fallback models.DayWeather) models.DayWeather {
	rows, err := h.FetchRange(ctx, date, date)
	if err != nil || len(rows) == 0 {
		metrics.WeatherFallbacks.Inc()
		return fallback
	}
	return models.DayWeather{HighTempF: rows[0].HighTempF, PrecipMM: rows[0].PrecipMM}
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
