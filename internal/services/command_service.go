package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/schedpanel/internal/engine"
	"github.com/isdelr/schedpanel/internal/metrics"
	"github.com/isdelr/schedpanel/internal/models"
)

// ErrInvalidCommand is returned for command input the scheduler was never asked about.
var ErrInvalidCommand = errors.New("invalid command")

// CommandServiceProvider defines the interface for control commands. Every command returns the
// scheduler snapshot taken right after it ran.
type CommandServiceProvider interface {
	StartScheduler(ctx context.Context) (models.SchedulerData, error)
	StandbyScheduler(ctx context.Context) (models.SchedulerData, error)
	StopScheduler(ctx context.Context) (models.SchedulerData, error)
	PauseScheduler(ctx context.Context) (models.SchedulerData, error)
	ResumeScheduler(ctx context.Context) (models.SchedulerData, error)

	PauseGroup(ctx context.Context, group string) (models.SchedulerData, error)
	ResumeGroup(ctx context.Context, group string) (models.SchedulerData, error)
	DeleteGroup(ctx context.Context, group string) (models.SchedulerData, error)

	PauseJob(ctx context.Context, name, group string) (models.SchedulerData, error)
	ResumeJob(ctx context.Context, name, group string) (models.SchedulerData, error)
	DeleteJob(ctx context.Context, name, group string) (models.SchedulerData, error)
	ExecuteJob(ctx context.Context, name, group string) (models.SchedulerData, error)

	PauseTrigger(ctx context.Context, name, group string) (models.SchedulerData, error)
	ResumeTrigger(ctx context.Context, name, group string) (models.SchedulerData, error)
	DeleteTrigger(ctx context.Context, name, group string) (models.SchedulerData, error)
	AddTrigger(ctx context.Context, input models.AddTriggerInput) (models.SchedulerData, error)
}

// CommandService forwards control commands to the scheduler.
type CommandService struct {
	scheduler engine.Controller
	clerk     ClerkServiceProvider
	metrics   metrics.Sink
}

// NewCommandService creates a new CommandService.
func NewCommandService(scheduler engine.Controller, clerk ClerkServiceProvider, sink metrics.Sink) *CommandService {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &CommandService{scheduler: scheduler, clerk: clerk, metrics: sink}
}

func (s *CommandService) run(ctx context.Context, command string, fn func(ctx context.Context) error) (models.SchedulerData, error) {
	err := fn(ctx)
	s.metrics.CommandExecuted(command, err)
	if err != nil {
		log.Warn().Err(err).Str("command", command).Msg("Scheduler command failed")
		return models.SchedulerData{}, err
	}
	log.Info().Str("command", command).Msg("Scheduler command executed")
	return s.clerk.GetSchedulerData(ctx)
}

func (s *CommandService) StartScheduler(ctx context.Context) (models.SchedulerData, error) {
	return s.run(ctx, "start_scheduler", s.scheduler.Start)
}

func (s *CommandService) StandbyScheduler(ctx context.Context) (models.SchedulerData, error) {
	return s.run(ctx, "standby_scheduler", s.scheduler.Standby)
}

func (s *CommandService) StopScheduler(ctx context.Context) (models.SchedulerData, error) {
	return s.run(ctx, "stop_scheduler", s.scheduler.Shutdown)
}

func (s *CommandService) PauseScheduler(ctx context.Context) (models.SchedulerData, error) {
	return s.run(ctx, "pause_scheduler", s.scheduler.PauseAll)
}

func (s *CommandService) ResumeScheduler(ctx context.Context) (models.SchedulerData, error) {
	return s.run(ctx, "resume_scheduler", s.scheduler.ResumeAll)
}

func (s *CommandService) PauseGroup(ctx context.Context, group string) (models.SchedulerData, error) {
	return s.run(ctx, "pause_group", func(ctx context.Context) error { return s.scheduler.PauseJobGroup(ctx, group) })
}

func (s *CommandService) ResumeGroup(ctx context.Context, group string) (models.SchedulerData, error) {
	return s.run(ctx, "resume_group", func(ctx context.Context) error { return s.scheduler.ResumeJobGroup(ctx, group) })
}

func (s *CommandService) DeleteGroup(ctx context.Context, group string) (models.SchedulerData, error) {
	return s.run(ctx, "delete_group", func(ctx context.Context) error { return s.scheduler.DeleteJobGroup(ctx, group) })
}

func (s *CommandService) PauseJob(ctx context.Context, name, group string) (models.SchedulerData, error) {
	key := engine.NewJobKey(name, group)
	return s.run(ctx, "pause_job", func(ctx context.Context) error { return s.scheduler.PauseJob(ctx, key) })
}

func (s *CommandService) ResumeJob(ctx context.Context, name, group string) (models.SchedulerData, error) {
	key := engine.NewJobKey(name, group)
	return s.run(ctx, "resume_job", func(ctx context.Context) error { return s.scheduler.ResumeJob(ctx, key) })
}

func (s *CommandService) DeleteJob(ctx context.Context, name, group string) (models.SchedulerData, error) {
	key := engine.NewJobKey(name, group)
	return s.run(ctx, "delete_job", func(ctx context.Context) error { return s.scheduler.DeleteJob(ctx, key) })
}

func (s *CommandService) ExecuteJob(ctx context.Context, name, group string) (models.SchedulerData, error) {
	key := engine.NewJobKey(name, group)
	return s.run(ctx, "execute_job", func(ctx context.Context) error { return s.scheduler.TriggerJob(ctx, key) })
}

func (s *CommandService) PauseTrigger(ctx context.Context, name, group string) (models.SchedulerData, error) {
	key := engine.NewTriggerKey(name, group)
	return s.run(ctx, "pause_trigger", func(ctx context.Context) error { return s.scheduler.PauseTrigger(ctx, key) })
}

func (s *CommandService) ResumeTrigger(ctx context.Context, name, group string) (models.SchedulerData, error) {
	key := engine.NewTriggerKey(name, group)
	return s.run(ctx, "resume_trigger", func(ctx context.Context) error { return s.scheduler.ResumeTrigger(ctx, key) })
}

func (s *CommandService) DeleteTrigger(ctx context.Context, name, group string) (models.SchedulerData, error) {
	key := engine.NewTriggerKey(name, group)
	return s.run(ctx, "delete_trigger", func(ctx context.Context) error { return s.scheduler.UnscheduleJob(ctx, key) })
}

// AddTrigger attaches a new trigger to an existing job. A trigger without a name gets a
// generated one.
func (s *CommandService) AddTrigger(ctx context.Context, input models.AddTriggerInput) (models.SchedulerData, error) {
	if input.JobName == "" {
		return models.SchedulerData{}, fmt.Errorf("%w: job name is required", ErrInvalidCommand)
	}
	if (input.CronExpression == "") == (input.RepeatInterval <= 0) {
		return models.SchedulerData{}, fmt.Errorf("%w: exactly one of cronExpression or repeatInterval is required", ErrInvalidCommand)
	}
	if input.Name == "" {
		input.Name = uuid.NewString()
	}

	spec := engine.TriggerSpec{
		Key:         engine.NewTriggerKey(input.Name, input.Group),
		JobKey:      engine.NewJobKey(input.JobName, input.JobGroup),
		Description: input.Description,
		Priority:    input.Priority,
		Cron:        input.CronExpression,
		Every:       time.Duration(input.RepeatInterval) * time.Millisecond,
		RepeatCount: input.RepeatCount,
		JobData:     input.JobDataMap,
	}
	return s.run(ctx, "add_trigger", func(ctx context.Context) error { return s.scheduler.ScheduleTrigger(ctx, spec) })
}
