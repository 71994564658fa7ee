// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"payguard/internal/shared/biztime"
	"payguard/internal/shared/logger"
)

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// QueuePump feeds payments awaiting a chain re-check into the verification queue.
type QueuePump interface {
	Pump(ctx context.Context) error
}

// SchedulerManager manages all scheduled jobs using gocron v2.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	// Track whether the scheduler has been started
	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
// It initializes gocron with the business timezone for cron expressions.
func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// RegisterExpiryJob registers the review-window sweep:
// payments past their expiration move to the expired state every minute.
func (m *SchedulerManager) RegisterExpiryJob(reapJob BatchJob) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()
			m.reapExpired(ctx, reapJob)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("verification", "expire"),
		gocron.WithName("verification-expiry-sweep"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered expiry sweep job", "interval", "1m")
	return nil
}

func (m *SchedulerManager) reapExpired(ctx context.Context, reapJob BatchJob) {
	m.logger.Debugw("expiry sweep started")

	startTime := biztime.NowUTC()

	expiredCount, err := reapJob.Execute(ctx)
	if err != nil {
		m.logger.Errorw("expiry sweep failed",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	if expiredCount > 0 {
		m.logger.Infow("expired payments processed",
			"count", expiredCount,
			"duration", time.Since(startTime),
		)
	} else {
		m.logger.Debugw("no payments to expire",
			"duration", time.Since(startTime),
		)
	}
}

// RegisterRecheckJob registers the pending re-check pump: payments still
// awaiting chain confirmation are re-queued for verification every 30 seconds.
// Unconfirmed transactions may settle later, so pending rows get re-checked
// until they resolve or expire.
func (m *SchedulerManager) RegisterRecheckJob(pump QueuePump) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(30*time.Second),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			m.pumpRechecks(ctx, pump)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("verification", "recheck"),
		gocron.WithName("verification-recheck-pump"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered recheck pump job", "interval", "30s")
	return nil
}

func (m *SchedulerManager) pumpRechecks(ctx context.Context, pump QueuePump) {
	if err := pump.Pump(ctx); err != nil {
		// Don't log error if context was cancelled (graceful shutdown)
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("failed to pump pending re-checks", "error", err)
	}
}

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
