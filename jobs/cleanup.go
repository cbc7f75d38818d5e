// Package jobs runs scheduled maintenance work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger deletes notifications older than a given age.
type Purger interface {
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Cleanup purges old notifications on a cron schedule.
type Cleanup struct {
	cron      *cron.Cron
	purger    Purger
	retention time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

func NewCleanup(purger Purger, retention time.Duration, schedule string, logger *zap.Logger) (*Cleanup, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cleanup{
		cron:      cron.New(),
		purger:    purger,
		retention: retention,
		timeout:   time.Minute,
		logger:    logger.Named("cleanup"),
	}
	if _, err := c.cron.AddFunc(schedule, func() {
		if _, err := c.RunOnce(context.Background()); err != nil {
			c.logger.Error("notification purge failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("jobs: schedule %q: %w", schedule, err)
	}
	return c, nil
}

// RunOnce performs a single purge outside the schedule.
func (c *Cleanup) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("running notification purge", zap.Duration("retention", c.retention))
	return c.purger.PurgeOlderThan(ctx, c.retention)
}

func (c *Cleanup) Start() {
	c.cron.Start()
	c.logger.Info("cleanup scheduled", zap.Int("entries", len(c.cron.Entries())))
}

// Stop halts the scheduler and waits for a running purge to finish.
func (c *Cleanup) Stop() {
	<-c.cron.Stop().Done()
}
