package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"dealerwatch/config"
	"dealerwatch/logging"
	"dealerwatch/services"
	"dealerwatch/storage"
)

const (
	disabledPoll  = 15 * time.Second
	minInterval   = 5 * time.Minute
	errorBackoff  = 60 * time.Second
	monitorSource = "monitor"
)

// Scheduler runs the inventory drift monitor and, optionally, a cron
// schedule of full scrape runs. Monitor config lives in the database
// so the control surface can adjust it while the loop is running; the
// loop re-reads it every cycle.
type Scheduler struct {
	cfg      *config.Config
	store    storage.Store
	control  *services.Control
	comparer *services.Comparer
	recorder *logging.Recorder
	cron     *cron.Cron
	stopCh   chan struct{}
}

func New(cfg *config.Config, store storage.Store, control *services.Control, comparer *services.Comparer) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		control:  control,
		comparer: comparer,
		recorder: logging.NewRecorder(store, monitorSource),
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.monitorLoop(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting cron schedule: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			runID, err := s.control.TriggerRun(ctx, 0)
			if errors.Is(err, services.ErrRunInProgress) {
				log.Println("Cron run skipped, a run is already in progress")
				return
			}
			if err != nil {
				log.Printf("Cron run error: %v", err)
				return
			}
			log.Printf("Cron run started: %s", runID)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) monitorLoop(ctx context.Context) {
	log.Println("Inventory monitor loop started")
	defer log.Println("Inventory monitor loop stopped")

	for {
		cfg, err := s.store.GetMonitorConfig(ctx)
		if err != nil {
			s.recorder.Error("", "Monitor config read failed: %v", err)
			if !s.sleep(ctx, errorBackoff) {
				return
			}
			continue
		}

		if !cfg.Enabled {
			if !s.sleep(ctx, disabledPoll) {
				return
			}
			continue
		}

		interval := time.Duration(cfg.IntervalMinutes) * time.Minute
		if interval < minInterval {
			interval = minInterval
		}

		if cfg.LastCheckAt == nil || time.Since(*cfg.LastCheckAt) >= interval {
			s.check(ctx, cfg.PagesToCheck)
		}

		if !s.sleep(ctx, disabledPoll) {
			return
		}
	}
}

// check compares the live site against the database and triggers a
// full run when they have drifted apart.
func (s *Scheduler) check(ctx context.Context, pages int) {
	s.recorder.Info("", "Monitor check starting (%d pages)", pages)

	result, err := s.comparer.Compare(ctx, pages, false)
	if err != nil {
		s.recorder.Error("", "Monitor check failed: %v", err)
		s.sleep(ctx, errorBackoff)
		return
	}

	summary := result.Summary()
	if err := s.store.TouchMonitorCheck(ctx, result.CheckedAt, summary); err != nil {
		s.recorder.Error("", "Monitor check record failed: %v", err)
	}

	if result.InSync() {
		s.recorder.Info("", "Monitor check: in sync. %s", summary)
		return
	}

	s.recorder.Warn("", "Inventory drift detected. %s", summary)
	runID, err := s.control.TriggerAutoRun(ctx, 0)
	if errors.Is(err, services.ErrRunInProgress) {
		s.recorder.Info("", "Auto-run skipped, a run is already in progress")
		return
	}
	if err != nil {
		s.recorder.Error("", "Auto-run trigger failed: %v", err)
		return
	}
	s.recorder.Info(runID, "Auto-run triggered: %s", runID)
}

// sleep waits for d unless the scheduler is stopped. Returns false
// when the loop should exit.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
