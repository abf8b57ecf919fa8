package artifacts

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper prunes expired artifacts on a cron schedule.
type Sweeper struct {
	store     *Store
	retention time.Duration
	scheduler *cron.Cron
	now       func() time.Time
}

// NewSweeper schedules pruning with a standard five-field cron spec or a
// descriptor such as "@hourly".
func NewSweeper(store *Store, retention time.Duration, spec string) (*Sweeper, error) {
	s := &Sweeper{
		store:     store,
		retention: retention,
		scheduler: cron.New(),
		now:       time.Now,
	}
	if _, err := s.scheduler.AddFunc(spec, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.scheduler.Start()
	slog.Info("artifact sweeper started", "retention", s.retention.String())
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.scheduler.Stop().Done()
}

// Sweep runs one pruning pass.
func (s *Sweeper) Sweep() {
	n, err := s.store.Prune(s.now().Add(-s.retention))
	if err != nil {
		slog.Warn("artifact sweep incomplete", "removed", n, "error", err)
		return
	}
	if n > 0 {
		slog.Info("artifacts pruned", "removed", n)
	}
}
