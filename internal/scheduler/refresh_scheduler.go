package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Refresher pulls server-side state into a local collection.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshJob names a refresher for logging.
type RefreshJob struct {
	Name      string
	Refresher Refresher
}

// RefreshScheduler periodically merges remote cart and wishlist state into
// the local cache.
type RefreshScheduler struct {
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	jobs     []RefreshJob
}

func NewRefreshScheduler(schedule string, timeout time.Duration, jobs ...RefreshJob) *RefreshScheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RefreshScheduler{
		cron:     cron.New(),
		schedule: schedule,
		timeout:  timeout,
		jobs:     jobs,
	}
}

// Start registers the refresh job. An empty schedule disables it.
func (s *RefreshScheduler) Start() error {
	if s.schedule == "" {
		logger.Info("Refresh scheduler disabled", nil)
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		logger.Error("Failed to add cron job for refresh", err, map[string]interface{}{
			"schedule": s.schedule,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Refresh scheduler started", map[string]interface{}{
		"schedule": s.schedule,
	})
	return nil
}

// RunOnce refreshes every job in order. A rejected session ends the run
// since the remaining jobs would be skipped anyway. It returns the number of
// jobs that completed.
func (s *RefreshScheduler) RunOnce(ctx context.Context) int {
	completed := 0
	for _, job := range s.jobs {
		err := job.Refresher.Refresh(ctx)
		switch {
		case err == nil:
			completed++
		case errors.Is(err, service.ErrSessionExpired):
			logger.Warn("Session expired during scheduled refresh", map[string]interface{}{
				"job": job.Name,
			})
			return completed
		default:
			logger.Error("Scheduled refresh failed", err, map[string]interface{}{
				"job": job.Name,
			})
		}
	}

	logger.Debug("Scheduled refresh finished", map[string]interface{}{
		"completed": completed,
		"jobs":      len(s.jobs),
	})
	return completed
}

// Stop waits for a running refresh to finish.
func (s *RefreshScheduler) Stop() {
	logger.Info("Stopping refresh scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Refresh scheduler stopped", nil)
}
