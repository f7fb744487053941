package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostly/internal/reminders"
	"hostly/internal/shared/apperr"
	"hostly/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

const (
	sweepJobName    = "reconciliation-sweep"
	reminderJobName = "event-reminders"
)

// ReminderRunner sends due event reminders
type ReminderRunner interface {
	Run(ctx context.Context) (*reminders.Result, error)
}

// JobProcessor runs the sweep and the reminder pass on a schedule
type JobProcessor struct {
	sweeper   *Sweeper
	reminders ReminderRunner
	config    *JobConfig
	scheduler gocron.Scheduler
	log       *logger.Logger
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	SweepInterval    time.Duration
	ReminderInterval time.Duration
	RunOnStart       bool
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		SweepInterval:    30 * time.Minute,
		ReminderInterval: 15 * time.Minute,
		RunOnStart:       true,
	}
}

// NewJobProcessor creates a job processor; reminderRunner may be nil
func NewJobProcessor(sweeper *Sweeper, reminderRunner ReminderRunner, clock clockwork.Clock, config *JobConfig, log *logger.Logger) (*JobProcessor, error) {
	if config == nil {
		config = DefaultJobConfig()
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &JobProcessor{
		sweeper:   sweeper,
		reminders: reminderRunner,
		config:    config,
		scheduler: scheduler,
		log:       log.WithComponent("jobs"),
	}, nil
}

// Start registers the jobs and starts the scheduler. Jobs stop when ctx is
// cancelled or Stop is called.
func (jp *JobProcessor) Start(ctx context.Context) error {
	if err := jp.register(ctx, sweepJobName, jp.config.SweepInterval, jp.runSweep); err != nil {
		return err
	}
	if jp.reminders != nil {
		if err := jp.register(ctx, reminderJobName, jp.config.ReminderInterval, jp.runReminders); err != nil {
			return err
		}
	}

	jp.scheduler.Start()
	jp.log.Info("Background jobs started",
		"sweep_interval", jp.config.SweepInterval.String(),
		"reminder_interval", jp.config.ReminderInterval.String(),
	)
	return nil
}

func (jp *JobProcessor) register(ctx context.Context, name string, interval time.Duration, run func(context.Context)) error {
	options := []gocron.JobOption{
		gocron.WithName(name),
		// A long sweep delays the next one instead of overlapping it
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if jp.config.RunOnStart {
		options = append(options, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err := jp.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { run(ctx) }),
		options...,
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Stop shuts the scheduler down and waits for running jobs
func (jp *JobProcessor) Stop() error {
	jp.log.Info("Stopping background jobs")
	return jp.scheduler.Shutdown()
}

// RunNow performs one sweep outside the schedule
func (jp *JobProcessor) RunNow(ctx context.Context) (*Result, error) {
	return jp.sweeper.Run(ctx)
}

func (jp *JobProcessor) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := jp.sweeper.Run(ctx); err != nil {
		if errors.Is(err, apperr.ErrSweepInProgress) {
			jp.log.Debug("Sweep skipped, another instance holds the lock")
			return
		}
		jp.log.Error("Scheduled sweep failed", "error", err)
	}
}

func (jp *JobProcessor) runReminders(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := jp.reminders.Run(ctx); err != nil {
		jp.log.Error("Reminder pass failed", "error", err)
	}
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	jobs := make([]map[string]interface{}, 0, 2)
	for _, job := range jp.scheduler.Jobs() {
		entry := map[string]interface{}{"name": job.Name()}
		if next, err := job.NextRun(); err == nil {
			entry["next_run"] = next
		}
		if last, err := job.LastRun(); err == nil && !last.IsZero() {
			entry["last_run"] = last
		}
		jobs = append(jobs, entry)
	}

	return map[string]interface{}{
		"sweep_interval":    jp.config.SweepInterval.String(),
		"reminder_interval": jp.config.ReminderInterval.String(),
		"jobs":              jobs,
	}
}
