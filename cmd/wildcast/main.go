package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/wildcast/wildcast/internal/api"
	"github.com/wildcast/wildcast/internal/config"
	"github.com/wildcast/wildcast/internal/ingest"
	"github.com/wildcast/wildcast/internal/models"
	"github.com/wildcast/wildcast/internal/predict"
	"github.com/wildcast/wildcast/internal/store"
	"github.com/wildcast/wildcast/internal/weather"
)

type cli struct {
	DB        string  `help:"Path to SQLite database." default:"data/wildcast.db" env:"WILDCAST_DB"`
	Latitude  float64 `help:"Venue latitude." default:"33.0980" env:"WILDCAST_LAT"`
	Longitude float64 `help:"Venue longitude." default:"-116.9967" env:"WILDCAST_LON"`
	Elevation float64 `help:"Venue elevation in metres." default:"150" env:"WILDCAST_ELEVATION"`
	Holidays  string  `help:"Holiday calendar country code." default:"US" env:"WILDCAST_HOLIDAYS"`

	Serve   serveCmd   `cmd:"" help:"Run the dashboard server with daily prediction regeneration."`
	Predict predictCmd `cmd:"" help:"Regenerate the persisted prediction families once and exit."`
	Load    loadCmd    `cmd:"" help:"Bulk-load historical attendance from a CSV file."`
}

type app struct {
	cfg        *config.Config
	store      *store.Store
	service    *predict.Service
	history    *weather.HistoryClient
	locationID int64
}

func (c *cli) setup() (*app, func(), error) {
	cfg := config.Default()
	cfg.Venue.Latitude = c.Latitude
	cfg.Venue.Longitude = c.Longitude
	cfg.Venue.Elevation = c.Elevation
	cfg.HolidayCountry = c.Holidays

	db, err := sql.Open("sqlite", c.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, cfg.Timezone)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	locationID, err := st.UpsertLocation(models.Location{
		Name:        cfg.Venue.Name,
		Description: cfg.Venue.Description,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("seed location: %w", err)
	}

	history := weather.NewHistoryClient(cfg.Venue.Latitude, cfg.Venue.Longitude, cfg.Venue.Elevation)
	forecastClient := weather.NewForecastClient(cfg.Venue.Latitude, cfg.Venue.Longitude)
	resolver := weather.NewFallbackResolver(forecastClient, cfg.FallbackWeather)
	service := predict.NewService(cfg, st, history, resolver, locationID)

	a := &app{
		cfg:        cfg,
		store:      st,
		service:    service,
		history:    history,
		locationID: locationID,
	}
	return a, func() { db.Close() }, nil
}

type serveCmd struct {
	Port       string `help:"HTTP server port." default:"8080" env:"WILDCAST_PORT"`
	NoSchedule bool   `help:"Disable the daily regeneration scheduler."`
}

func (s *serveCmd) Run(c *cli) error {
	a, closeDB, err := c.setup()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !s.NoSchedule {
		scheduler := predict.NewScheduler(a.cfg, a.service)
		go scheduler.Run(ctx)
	} else {
		log.Println("scheduler disabled (--no-schedule)")
	}

	server := api.NewServer(a.cfg, a.store, a.service, a.history, a.locationID, s.Port)
	log.Printf("starting server on :%s", s.Port)
	return server.Run(ctx)
}

type predictCmd struct{}

func (p *predictCmd) Run(c *cli) error {
	a, closeDB, err := c.setup()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := a.service.Regenerate(context.Background(), a.cfg.Today()); err != nil {
		return fmt.Errorf("regenerate: %w", err)
	}
	log.Println("predictions regenerated")
	return nil
}

type loadCmd struct {
	Path string `arg:"" help:"CSV file of date,count rows." type:"existingfile"`
}

func (l *loadCmd) Run(c *cli) error {
	a, closeDB, err := c.setup()
	if err != nil {
		return err
	}
	defer closeDB()

	f, err := os.Open(l.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.Path, err)
	}
	defer f.Close()

	loader := ingest.NewLoader(a.store, a.history, a.locationID)
	n, err := loader.Load(context.Background(), f)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	log.Printf("loaded %d attendance records", n)
	return nil
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("wildcast"),
		kong.Description("Daily visitor attendance forecasting for a single venue."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	if err := ctx.Run(&c); err != nil {
		log.Fatalf("%s: %v", ctx.Command(), err)
	}
}
