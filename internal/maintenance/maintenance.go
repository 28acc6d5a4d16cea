// internal/maintenance/maintenance.go

// Package maintenance runs the scheduled background jobs: deleting orphaned
// stored images and sending purchase reminders for upcoming events.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wishlink/wishlink/internal/monitoring"
	"github.com/wishlink/wishlink/internal/store"
	"github.com/wishlink/wishlink/internal/utils"
)

// ImageDeleter removes an image from external media storage by its public ID.
type ImageDeleter interface {
	DeleteImage(ctx context.Context, publicID string) error
}

// Notifier delivers a purchase reminder for one item.
type Notifier interface {
	NotifyUpcoming(ctx context.Context, item *store.Item) error
}

// Config bounds the scheduled jobs.
type Config struct {
	ImageCleanupSchedule string
	// ImageCleanupBudget caps deletions per run so one large account
	// removal cannot monopolize a run.
	ImageCleanupBudget int
	// ImageCleanupMaxAttempts retires entries that keep failing.
	ImageCleanupMaxAttempts int

	ReminderSchedule string
	// ReminderWindow is how far ahead of an event date reminders fire.
	ReminderWindow time.Duration
}

// Scheduler owns the cron runner and the jobs it drives.
type Scheduler struct {
	config   Config
	store    store.Store
	images   ImageDeleter
	notifier Notifier
	logger   utils.Logger
	metrics  *monitoring.Metrics
	cron     *cron.Cron
}

// NewScheduler builds a scheduler. images and notifier may be nil, which
// disables the corresponding job.
func NewScheduler(config Config, st store.Store, images ImageDeleter, notifier Notifier, logger utils.Logger, metrics *monitoring.Metrics) *Scheduler {
	if config.ImageCleanupBudget <= 0 {
		config.ImageCleanupBudget = 40
	}
	if config.ImageCleanupMaxAttempts <= 0 {
		config.ImageCleanupMaxAttempts = 5
	}
	if config.ReminderWindow <= 0 {
		config.ReminderWindow = 48 * time.Hour
	}
	return &Scheduler{
		config:   config,
		store:    st,
		images:   images,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		cron:     cron.New(),
	}
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	if s.images != nil && s.config.ImageCleanupSchedule != "" {
		_, err := s.cron.AddFunc(s.config.ImageCleanupSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := s.RunImageCleanup(ctx); err != nil {
				s.logger.Errorf("image cleanup run failed: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid image cleanup schedule: %w", err)
		}
	}

	if s.notifier != nil && s.config.ReminderSchedule != "" {
		_, err := s.cron.AddFunc(s.config.ReminderSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := s.RunReminders(ctx); err != nil {
				s.logger.Errorf("reminder run failed: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid reminder schedule: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunImageCleanup drains up to the configured budget of queued image
// deletions. Failures are recorded against the entry rather than aborting
// the run; entries past the attempt limit stop being selected.
func (s *Scheduler) RunImageCleanup(ctx context.Context) error {
	entries, err := s.store.DueImageCleanups(ctx, s.config.ImageCleanupBudget, s.config.ImageCleanupMaxAttempts)
	if err != nil {
		s.observe("image_cleanup", "error")
		return err
	}

	deleted, failed := 0, 0
	for _, entry := range entries {
		deleteErr := s.images.DeleteImage(ctx, entry.PublicID)
		if deleteErr != nil {
			failed++
			s.logger.Warnf("failed to delete image %s (attempt %d): %v", entry.PublicID, entry.Attempts+1, deleteErr)
		} else {
			deleted++
		}
		if err := s.store.ResolveImageCleanup(ctx, entry.ID, deleteErr); err != nil {
			s.logger.Errorf("failed to update cleanup entry %s: %v", entry.ID, err)
		}
	}

	if len(entries) > 0 {
		s.logger.Infof("image cleanup: %d deleted, %d failed, %d processed", deleted, failed, len(entries))
	}
	s.observe("image_cleanup", "ok")
	return nil
}

// RunReminders notifies owners of unpurchased items whose event date falls
// inside the reminder window.
func (s *Scheduler) RunReminders(ctx context.Context) error {
	items, err := s.store.ItemsDueForReminder(ctx, time.Now(), s.config.ReminderWindow)
	if err != nil {
		s.observe("reminders", "error")
		return err
	}

	sent := 0
	for _, item := range items {
		if err := s.notifier.NotifyUpcoming(ctx, item); err != nil {
			s.logger.Warnf("failed to notify for item %s: %v", item.ID, err)
			continue
		}
		sent++
	}

	if len(items) > 0 {
		s.logger.Infof("reminders: %d sent of %d due", sent, len(items))
	}
	s.observe("reminders", "ok")
	return nil
}

func (s *Scheduler) observe(job, result string) {
	if s.metrics != nil {
		s.metrics.ObserveMaintenance(job, result)
	}
}
