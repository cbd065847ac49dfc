// Package ingest loads historical attendance records in bulk from CSV and
// enriches them with historical weather for the covered span.
package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/wildcast/wildcast/internal/models"
	"github.com/wildcast/wildcast/internal/predict"
	"github.com/wildcast/wildcast/internal/store"
)

// dateLayouts accepted in attendance exports; four-digit years first.
var dateLayouts = []string{"1/2/2006", "1/2/06", "2006-01-02"}

// Record is one parsed CSV row.
type Record struct {
	Date  time.Time
	Count int64
}

// ParseCSV reads rows of the form "M/D/YYYY,count". Counts may carry
// thousands separators. Unparseable rows are skipped with a log line, the
// way the original bulk loader behaved.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(row) < 2 {
			continue
		}

		date, ok := parseDate(strings.TrimSpace(row[0]))
		if !ok {
			log.Printf("ingest: could not parse date %q, skipping", row[0])
			continue
		}

		count, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(row[1]), ",", ""), 10, 64)
		if err != nil {
			log.Printf("ingest: could not parse count %q, skipping", row[1])
			continue
		}
		if count < 0 {
			log.Printf("ingest: negative count %d for %s, skipping", count, date.Format("2006-01-02"))
			continue
		}

		records = append(records, Record{Date: date, Count: count})
	}
	return records, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Loader upserts parsed records as observations, attaching each date's
// historical weather fetched once for the whole span.
type Loader struct {
	store      *store.Store
	history    predict.HistorySource
	locationID int64
}

func NewLoader(st *store.Store, history predict.HistorySource, locationID int64) *Loader {
	return &Loader{store: st, history: history, locationID: locationID}
}

func (l *Loader) Load(ctx context.Context, r io.Reader) (int, error) {
	records, err := ParseCSV(r)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	start, end := records[0].Date, records[0].Date
	for _, rec := range records {
		if rec.Date.Before(start) {
			start = rec.Date
		}
		if rec.Date.After(end) {
			end = rec.Date
		}
	}

	byDate := make(map[string]models.DailyWeather)
	wx, err := l.history.FetchRange(ctx, start, end)
	if err != nil {
		log.Printf("ingest: historical weather unavailable, loading without weather: %v", err)
	}
	for _, w := range wx {
		byDate[w.Date.Format("2006-01-02")] = w
	}

	loaded := 0
	for _, rec := range records {
		obs := models.Observation{
			Date:       rec.Date,
			LocationID: l.locationID,
			Count:      rec.Count,
		}
		if w, ok := byDate[rec.Date.Format("2006-01-02")]; ok {
			obs.HighTempF = sql.NullFloat64{Float64: w.HighTempF, Valid: true}
			obs.PrecipMM = sql.NullFloat64{Float64: w.PrecipMM, Valid: true}
		}
		if err := l.store.UpsertObservation(obs); err != nil {
			return loaded, fmt.Errorf("upsert %s: %w", rec.Date.Format("2006-01-02"), err)
		}
		loaded++
	}
	return loaded, nil
}
