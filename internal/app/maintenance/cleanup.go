package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/visitdesk/visitdesk/internal/models"
	"github.com/visitdesk/visitdesk/pkg/logger"
)

const (
	defaultRetentionDays = 90
	defaultCleanupSpec   = "@daily"
)

// Cleaner prunes settled notification jobs past their retention window.
// Visits are deliberately out of scope: there is no background expiry of
// visit records, whatever their state.
type Cleaner struct {
	db        *gorm.DB
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int
	schedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetentionDays adjusts how long settled notification jobs are kept.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSchedule overrides the cron specification for the cleanup job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) (*Cleaner, error) {
	if db == nil {
		return nil, errors.New("maintenance: db is required")
	}

	cleaner := &Cleaner{
		db:        db,
		now:       time.Now,
		retention: defaultRetentionDays,
		schedule:  defaultCleanupSpec,
		log:       logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner, nil
}

// Start registers the cleanup job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("notification job cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule cleanup: %w", err)
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes the cleanup routines sequentially. Primarily used in
// tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cutoff := c.now().UTC().AddDate(0, 0, -c.retention)

	var errs error
	stats, err := CleanupJobs(ctx, c.db, cutoff)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	if stats.Sent > 0 || stats.Failed > 0 {
		c.log.Info("pruned notification jobs",
			zap.Int64("sent", stats.Sent),
			zap.Int64("failed", stats.Failed),
		)
	}
	return errs
}

// JobCleanupStats captures the number of records removed per terminal status.
type JobCleanupStats struct {
	Sent   int64
	Failed int64
}

// CleanupJobs removes settled notification jobs created before the cutoff.
// Pending jobs are never touched regardless of age.
func CleanupJobs(ctx context.Context, db *gorm.DB, cutoff time.Time) (JobCleanupStats, error) {
	if db == nil {
		return JobCleanupStats{}, errors.New("maintenance: db is required")
	}

	var stats JobCleanupStats
	var errs error

	res := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.JobSent, cutoff).
		Delete(&models.NotificationJob{})
	if res.Error != nil {
		errs = multierr.Append(errs, fmt.Errorf("maintenance: prune sent jobs: %w", res.Error))
	} else {
		stats.Sent = res.RowsAffected
	}

	res = db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.JobFailed, cutoff).
		Delete(&models.NotificationJob{})
	if res.Error != nil {
		errs = multierr.Append(errs, fmt.Errorf("maintenance: prune failed jobs: %w", res.Error))
	} else {
		stats.Failed = res.RowsAffected
	}

	return stats, errs
}
