package statussync

import (
	"context"
	"time"

	"lens-tracker/internal/logger"
)

// ShouldRun is the business-hours gate for scheduled runs: Monday to Friday,
// hour in [SyncStartHour, SyncEndHour) of now's own location.
func (s *Synchronizer) ShouldRun(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := now.Hour()
	return h >= s.cfg.SyncStartHour && h < s.cfg.SyncEndHour
}

// Tick is the scheduled entry point. It returns ran=false without touching
// the store when the gate is closed.
func (s *Synchronizer) Tick(ctx context.Context) (res Result, ran bool) {
	if !s.ShouldRun(s.now()) {
		return Result{}, false
	}
	return s.sync(ctx, SystemActor, "scheduled"), true
}

// Watch calls Tick every interval until ctx is done.
func (s *Synchronizer) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("SYNC", "Scheduler stopped")
			return
		case <-ticker.C:
			if _, ran := s.Tick(ctx); !ran {
				logger.Info("SYNC", "Outside sync window, skipping")
			}
		}
	}
}
