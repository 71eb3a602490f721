package services

import (
	"context"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/internal/scheduler"
)

const evictionJob = "index-eviction"

// SweepIdle evicts user indexes that have been idle longer than the
// configured TTL. Their documents stay recorded and are restored on next use.
func (s *ResearchService) SweepIdle(ctx context.Context) error {
	evicted := s.Registry.EvictIdle(s.opts.IndexIdleTTL)
	s.Metrics.RecordEvictions(ctx, len(evicted))
	if len(evicted) > 0 {
		logger.Info("Evicted idle indexes", "count", len(evicted), "resident", s.Registry.Stats().ActiveUsers)
	}
	return nil
}

// ScheduleMaintenance registers the idle index sweep on sched.
func (s *ResearchService) ScheduleMaintenance(sched *scheduler.Scheduler, interval time.Duration) error {
	return sched.Every(evictionJob, interval, s.SweepIdle)
}
