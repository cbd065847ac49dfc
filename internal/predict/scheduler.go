package predict

import (
	"context"
	"log"
	"time"

	"github.com/wildcast/wildcast/internal/config"
)

// Scheduler re-runs the regeneration once per local day so the persisted
// prediction families track the growing history without manual runs.
type Scheduler struct {
	cfg     *config.Config
	service *Service
	lastRun string // local date of the last successful regeneration
}

func NewScheduler(cfg *config.Config, service *Service) *Scheduler {
	return &Scheduler{cfg: cfg, service: service}
}

// Run regenerates immediately, then once per day after the local date rolls
// over. It blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.regenerate(ctx)

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			if s.localDate() != s.lastRun {
				s.regenerate(ctx)
			}
		}
	}
}

func (s *Scheduler) regenerate(ctx context.Context) {
	if err := s.service.Regenerate(ctx, s.cfg.Today()); err != nil {
		log.Printf("scheduler: regenerate: %v", err)
		return
	}
	s.lastRun = s.localDate()
}

func (s *Scheduler) localDate() string {
	return time.Now().In(s.cfg.Timezone).Format("2006-01-02")
}
