package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/go-co-op/gocron"
)

// Scheduler runs periodic maintenance jobs such as the idle index sweep.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels the context handed to running jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.cancel()
}

// Every schedules job to run each interval, starting one interval from now.
// A run that is still going when the next one is due is skipped.
func (s *Scheduler) Every(tag string, interval time.Duration, job func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", tag)
	}
	_, err := s.scheduler.Every(interval).Tag(tag).SingletonMode().WaitForSchedule().Do(func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			logger.Error("Scheduled job failed", "job", tag, "error", err)
			return
		}
		logger.Debug("Scheduled job finished", "job", tag, "elapsed", time.Since(start).String())
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", tag, err)
	}
	return nil
}

// RemoveJob removes a scheduled job by tag
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// Jobs returns the tags of every scheduled job.
func (s *Scheduler) Jobs() []string {
	var tags []string
	for _, j := range s.scheduler.Jobs() {
		tags = append(tags, j.Tags()...)
	}
	return tags
}
