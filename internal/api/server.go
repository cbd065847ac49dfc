package api

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wildcast/wildcast/internal/chart"
	"github.com/wildcast/wildcast/internal/config"
	"github.com/wildcast/wildcast/internal/models"
	"github.com/wildcast/wildcast/internal/predict"
	"github.com/wildcast/wildcast/internal/store"
)

//go:embed templates/*
var templateFS embed.FS

// HistoryDaySource enriches manual attendance entries with the recorded
// weather for that date.
type HistoryDaySource interface {
	FetchDay(ctx context.Context, date time.Time, fallback models.DayWeather) models.DayWeather
}

type Server struct {
	cfg        *config.Config
	store      *store.Store
	service    *predict.Service
	history    HistoryDaySource
	locationID int64
	port       string
	tmpl       *template.Template

	chartMu      sync.Mutex
	chartPNG     []byte
	chartExpires time.Time
}

func NewServer(cfg *config.Config, st *store.Store, service *predict.Service, history HistoryDaySource, locationID int64, port string) *Server {
	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.Format("Mon, Jan 2") },
		"num":  func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) },
		"temp": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	}
	tmpl := template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

	return &Server{
		cfg:        cfg,
		store:      st,
		service:    service,
		history:    history,
		locationID: locationID,
		port:       port,
		tmpl:       tmpl,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/input", s.handleInput)
	mux.HandleFunc("/chart.png", s.handleChart)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/predictions/7day", s.handleSevenDay)
	mux.HandleFunc("/api/predictions/longrange", s.handleLongRange)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type indexData struct {
	Venue    string
	Today    predict.DayPrediction
	Tomorrow predict.DayPrediction
	Week     []predict.DayPrediction
	Busiest  predict.DayPrediction
	Slowest  predict.DayPrediction
	Error    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := indexData{Venue: s.cfg.Venue.Name}

	dash, err := s.service.GetDashboard(r.Context(), s.cfg.Today())
	if err != nil {
		log.Printf("api: dashboard: %v", err)
		data.Error = "Not enough attendance history to produce a forecast yet."
	} else {
		data.Today = dash.Week.Days[0]
		data.Tomorrow = dash.Week.Days[1]
		data.Week = dash.Week.Days
		data.Busiest = dash.Week.Busiest
		data.Slowest = dash.Week.Slowest

		if png, err := chart.Render30Day(dash.Trend); err == nil {
			s.chartMu.Lock()
			s.chartPNG = png
			s.chartExpires = time.Now().Add(1 * time.Hour)
			s.chartMu.Unlock()
		}
	}

	s.render(w, "index.html", data)
}

// handleChart serves the cached 30-day chart, regenerating it (one model
// fit) when stale.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	s.chartMu.Lock()
	cached := s.chartPNG
	fresh := time.Now().Before(s.chartExpires)
	s.chartMu.Unlock()

	if cached == nil || !fresh {
		trend, err := s.service.Trend30(r.Context(), s.cfg.Today())
		if err != nil {
			http.Error(w, "chart unavailable", http.StatusServiceUnavailable)
			return
		}
		png, err := chart.Render30Day(trend)
		if err != nil {
			http.Error(w, "chart unavailable", http.StatusServiceUnavailable)
			return
		}
		s.chartMu.Lock()
		s.chartPNG = png
		s.chartExpires = time.Now().Add(1 * time.Hour)
		cached = png
		s.chartMu.Unlock()
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(cached)
}

type inputData struct {
	Venue   string
	Success string
	Error   string
	Recent  []models.Observation
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	data := inputData{Venue: s.cfg.Venue.Name}

	if r.Method == http.MethodPost {
		success, err := s.saveEntry(r)
		if err != nil {
			data.Error = err.Error()
		} else {
			data.Success = success
		}
	}

	recent, err := s.store.GetRecentObservations(s.locationID, 10)
	if err != nil {
		log.Printf("api: recent observations: %v", err)
	}
	data.Recent = recent

	s.render(w, "input.html", data)
}

func (s *Server) saveEntry(r *http.Request) (string, error) {
	dateStr := r.PostFormValue("date")
	countStr := r.PostFormValue("attendance")
	if dateStr == "" || countStr == "" {
		return "", fmt.Errorf("date and attendance are both required")
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", dateStr)
	}
	count, err := strconv.ParseInt(strings.ReplaceAll(countStr, ",", ""), 10, 64)
	if err != nil || count < 0 {
		return "", fmt.Errorf("invalid attendance count %q", countStr)
	}

	wx := s.history.FetchDay(r.Context(), date, s.cfg.FallbackWeather)

	obs := models.Observation{
		Date:       date,
		LocationID: s.locationID,
		Count:      count,
		HighTempF:  nullFloat(wx.HighTempF),
		PrecipMM:   nullFloat(wx.PrecipMM),
	}
	if err := s.store.UpsertObservation(obs); err != nil {
		return "", fmt.Errorf("save entry: %w", err)
	}

	return fmt.Sprintf("Recorded %d visitors for %s.", count, date.Format("January 2, 2006")), nil
}

type predictionJSON struct {
	Date       string   `json:"date"`
	Value      float64  `json:"value"`
	LowerBound float64  `json:"lower_bound"`
	UpperBound float64  `json:"upper_bound"`
	HighTempF  *float64 `json:"high_temp_f,omitempty"`
	PrecipMM   *float64 `json:"precip_mm,omitempty"`
}

func (s *Server) handleSevenDay(w http.ResponseWriter, r *http.Request) {
	s.servePredictions(w, models.FamilySevenDay)
}

func (s *Server) handleLongRange(w http.ResponseWriter, r *http.Request) {
	s.servePredictions(w, models.FamilyLongRange)
}

func (s *Server) servePredictions(w http.ResponseWriter, family string) {
	preds, err := s.store.GetPredictions(family, s.locationID)
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	out := make([]predictionJSON, 0, len(preds))
	for _, p := range preds {
		pj := predictionJSON{
			Date:       p.Date.Format("2006-01-02"),
			Value:      p.Value,
			LowerBound: p.LowerBound,
			UpperBound: p.UpperBound,
		}
		if p.HighTempF.Valid {
			v := p.HighTempF.Float64
			pj.HighTempF = &v
		}
		if p.PrecipMM.Valid {
			v := p.PrecipMM.Float64
			pj.PrecipMM = &v
		}
		out = append(out, pj)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.CountObservations(s.locationID); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("api: render %s: %v", name, err)
	}
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}
