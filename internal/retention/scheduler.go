// Package retention removes webhook log rows older than the configured
// retention window on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aimerfeng/LineHook/internal/config"
	"github.com/aimerfeng/LineHook/internal/logging"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// runTimeout bounds a single sweep
const runTimeout = 5 * time.Minute

// Expirer deletes log rows older than a cutoff
type Expirer interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs the retention sweep on a cron schedule
type Scheduler struct {
	logs     Expirer
	maxAge   time.Duration
	schedule cron.Schedule
	cron     *cron.Cron
	now      func() time.Time
	logger   zerolog.Logger

	mu          sync.Mutex
	running     bool
	lastRun     time.Time
	lastDeleted int64
	lastErr     error
}

// Status represents the current status of the scheduler
type Status struct {
	Running     bool       `json:"running"`
	Days        int        `json:"retention_days"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastDeleted int64      `json:"last_deleted"`
	LastError   string     `json:"last_error,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewScheduler creates a retention scheduler. It returns nil, nil when
// retention is disabled (Days == 0).
func NewScheduler(logs Expirer, cfg *config.RetentionConfig) (*Scheduler, error) {
	if cfg.Days <= 0 {
		return nil, nil
	}

	schedule, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}

	return &Scheduler{
		logs:     logs,
		maxAge:   time.Duration(cfg.Days) * 24 * time.Hour,
		schedule: schedule,
		now:      time.Now,
		logger:   logging.NewLogger("retention"),
	}, nil
}

// Start begins the scheduled sweeps
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.cron = cron.New(cron.WithParser(parser))
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := s.RunNow(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Retention sweep failed")
		}
	}))
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Dur("max_age", s.maxAge).
		Time("next_run", s.schedule.Next(s.now())).
		Msg("Retention scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info().Msg("Retention scheduler stopped")
}

// RunNow deletes rows older than the retention window immediately
func (s *Scheduler) RunNow(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.maxAge)

	deleted, err := s.logs.DeleteOlderThan(ctx, cutoff)

	s.mu.Lock()
	s.lastRun = s.now()
	s.lastDeleted = deleted
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}

	monitoring.RecordRetentionDeletes(deleted)
	s.logger.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Retention sweep completed")
	return deleted, nil
}

// GetStatus returns the current status of the scheduler
func (s *Scheduler) GetStatus() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &Status{
		Running:     s.running,
		Days:        int(s.maxAge / (24 * time.Hour)),
		LastDeleted: s.lastDeleted,
	}
	if !s.lastRun.IsZero() {
		lastRun := s.lastRun
		status.LastRun = &lastRun
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.running {
		next := s.schedule.Next(s.now())
		status.NextRun = &next
	}
	return status
}
