// Package retention runs the scheduled housekeeping jobs: purging trash
// entries past the retention period and closing idle editor sessions.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"folio/internal/database"
	"folio/internal/logging"
	"folio/internal/metrics"
	"folio/internal/trash"
)

const (
	trashJobName  = "trash-retention"
	editorJobName = "editor-prune"

	day = 24 * time.Hour
)

// Purger removes trash entries deleted before a cutoff.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (trash.Summary, error)
}

// Settings reads runtime overrides from the catalog.
type Settings interface {
	GetIntSetting(ctx context.Context, key string, def int) (int, error)
}

// Pruner closes idle editor sessions.
type Pruner interface {
	Prune(maxIdle time.Duration) int
}

// Config controls the jobs.
type Config struct {
	// Retention is how long trashed items are kept when the
	// trash_retention_days setting is unset. Zero disables purging.
	Retention time.Duration
	// Interval between runs. Defaults to one hour.
	Interval time.Duration
	// Editors, when set, has sessions idle for longer than EditorIdle closed
	// on every run.
	Editors    Pruner
	EditorIdle time.Duration
}

// Scheduler owns the gocron scheduler and its jobs.
type Scheduler struct {
	sched    gocron.Scheduler
	purger   Purger
	settings Settings
	cfg      Config
	now      func() time.Time
}

// New registers the jobs without starting them.
func New(purger Purger, settings Settings, cfg Config) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.EditorIdle <= 0 {
		cfg.EditorIdle = 12 * time.Hour
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Scheduler{
		sched:    sched,
		purger:   purger,
		settings: settings,
		cfg:      cfg,
		now:      time.Now,
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(s.runTrash),
		gocron.WithName(trashJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("add %s job: %w", trashJobName, err)
	}

	if cfg.Editors != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(cfg.Interval),
			gocron.NewTask(func() { cfg.Editors.Prune(cfg.EditorIdle) }),
			gocron.WithName(editorJobName),
		); err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("add %s job: %w", editorJobName, err)
		}
	}

	return s, nil
}

// Start begins running the jobs in the background.
func (s *Scheduler) Start() {
	logging.Info("Starting retention scheduler (interval %v)", s.cfg.Interval)
	s.sched.Start()
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) runTrash() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		logging.Error("Trash retention run failed: %v", err)
	}
}

// RunOnce purges trash entries older than the effective retention. A
// disabled retention is not an error and removes nothing.
func (s *Scheduler) RunOnce(ctx context.Context) (trash.Summary, error) {
	retention, err := s.Retention(ctx)
	if err != nil {
		metrics.RetentionRunsTotal.WithLabelValues("error").Inc()
		return trash.Summary{}, err
	}
	if retention <= 0 {
		logging.Debug("Trash retention disabled, skipping run")
		metrics.RetentionRunsTotal.WithLabelValues("disabled").Inc()
		return trash.Summary{}, nil
	}

	now := s.now()
	summary, err := s.purger.PurgeOlderThan(ctx, now.Add(-retention))
	metrics.RetentionRunsTotal.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		return summary, err
	}
	metrics.RetentionLastRunTimestamp.Set(float64(now.Unix()))

	if summary.Total > 0 {
		logging.Info("Trash retention: %s", summary)
		for _, f := range summary.Failures {
			logging.Warn("Trash retention could not remove %s %s: %s", f.Type, f.ID, f.Message)
		}
	}
	return summary, nil
}

// Retention returns the trash_retention_days setting when it holds a
// non-negative number of days, and the configured default otherwise.
// Periods too long for a time.Duration are clamped.
func (s *Scheduler) Retention(ctx context.Context) (time.Duration, error) {
	if s.settings == nil {
		return s.cfg.Retention, nil
	}
	days, err := s.settings.GetIntSetting(ctx, database.SettingTrashRetentionDays, -1)
	if err != nil {
		return 0, err
	}
	if days < 0 {
		return s.cfg.Retention, nil
	}
	if days > database.MaxTrashRetentionDays {
		days = database.MaxTrashRetentionDays
	}
	return time.Duration(days) * day, nil
}
