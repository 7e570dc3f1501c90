package fileindex

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field, plus descriptors like
// "@every 1m".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler rescans an index on a cron schedule.
type Scheduler struct {
	index    *Index
	schedule string
	cron     *cron.Cron
}

// NewScheduler validates schedule and returns a stopped scheduler.
func NewScheduler(ix *Index, schedule string) (*Scheduler, error) {
	if _, err := cronParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("parse rescan schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		index:    ix,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
	}, nil
}

// Start registers the rescan job and starts the cron ticker.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.rescan); err != nil {
		return fmt.Errorf("schedule rescan: %w", err)
	}
	s.cron.Start()
	slog.Info("scheduled index rescan", "schedule", s.schedule)
	return nil
}

// Stop stops the ticker and waits for a running rescan to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) rescan() {
	if err := s.index.Scan(); err != nil {
		slog.Error("scheduled rescan failed", "root", s.index.Root(), "error", err)
	}
}
