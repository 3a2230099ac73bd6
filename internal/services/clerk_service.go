package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/schedpanel/internal/engine"
	"github.com/isdelr/schedpanel/internal/metrics"
	"github.com/isdelr/schedpanel/internal/models"
)

// ClerkServiceProvider defines the interface for building views of a live scheduler.
type ClerkServiceProvider interface {
	GetSchedulerData(ctx context.Context) (models.SchedulerData, error)
	GetJobDetailsData(ctx context.Context, name, group string) (*models.JobDetailsData, error)
	GetTriggerDetailsData(ctx context.Context, name, group string) (*models.TriggerDetailsData, error)
	GetSchedulerDetails(ctx context.Context) (models.SchedulerDetails, error)
	GetScheduledJobTypes(ctx context.Context) ([]string, error)
}

// ClerkService queries a scheduler adapter. Every result is assembled from several calls against
// a scheduler that may change in between, so views are best effort and never cached.
type ClerkService struct {
	scheduler engine.Reader
	metrics   metrics.Sink
}

// NewClerkService creates a new ClerkService.
func NewClerkService(scheduler engine.Reader, sink metrics.Sink) *ClerkService {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &ClerkService{scheduler: scheduler, metrics: sink}
}

func (s *ClerkService) observe(op string, start time.Time, err error) {
	s.metrics.ClerkQuery(op, time.Since(start), err)
}

// GetSchedulerData builds the full scheduler snapshot.
func (s *ClerkService) GetSchedulerData(ctx context.Context) (data models.SchedulerData, err error) {
	start := time.Now()
	defer func() { s.observe("scheduler_data", start, err) }()

	md, err := s.scheduler.MetaData(ctx)
	if err != nil {
		return models.SchedulerData{}, fmt.Errorf("scheduler metadata: %w", err)
	}

	data = models.SchedulerData{
		Name:         s.scheduler.Name(),
		InstanceID:   s.scheduler.InstanceID(),
		JobsExecuted: md.NumberOfJobsExecuted,
		RunningSince: unixMillis(md.RunningSince),
		JobGroups:    []models.JobGroupData{},
		InProgress:   []models.ExecutingJobInfo{},
	}

	if !md.SchedulerRemote && !s.scheduler.IsShutdown() {
		executing, err := s.scheduler.CurrentlyExecutingJobs(ctx)
		if err != nil {
			return models.SchedulerData{}, fmt.Errorf("currently executing jobs: %w", err)
		}
		for _, exec := range executing {
			data.InProgress = append(data.InProgress, models.ExecutingJobInfo{
				UniqueTriggerKey: exec.TriggerKey.String(),
				FireInstanceID:   exec.FireInstanceID,
			})
		}
	}

	if !s.scheduler.IsShutdown() {
		groups, err := s.scheduler.JobGroupNames(ctx)
		if err != nil {
			return models.SchedulerData{}, fmt.Errorf("job group names: %w", err)
		}
		for _, group := range groups {
			groupData, err := s.jobGroup(ctx, group)
			if err != nil {
				return models.SchedulerData{}, err
			}
			data.JobsTotal += len(groupData.Jobs)
			data.JobGroups = append(data.JobGroups, groupData)
		}
	}

	if data.Status, err = s.status(ctx); err != nil {
		return models.SchedulerData{}, err
	}
	if data.Status == models.SchedulerShutdown {
		data.JobsTotal = 0
		data.JobGroups = []models.JobGroupData{}
		data.InProgress = []models.ExecutingJobInfo{}
	}
	return data, nil
}

// status applies the checks in order: shutdown, empty, standby, started.
func (s *ClerkService) status(ctx context.Context) (models.SchedulerStatus, error) {
	if s.scheduler.IsShutdown() {
		return models.SchedulerShutdown, nil
	}
	groups, err := s.scheduler.JobGroupNames(ctx)
	if err != nil {
		return "", fmt.Errorf("job group names: %w", err)
	}
	switch {
	case len(groups) == 0:
		return models.SchedulerEmpty, nil
	case s.scheduler.InStandbyMode():
		return models.SchedulerReady, nil
	case s.scheduler.IsStarted():
		return models.SchedulerStarted, nil
	default:
		return models.SchedulerReady, nil
	}
}

func (s *ClerkService) jobGroup(ctx context.Context, group string) (models.JobGroupData, error) {
	keys, err := s.scheduler.JobKeys(ctx, engine.GroupEquals(group))
	if err != nil {
		return models.JobGroupData{}, fmt.Errorf("job keys of group %s: %w", group, err)
	}

	groupData := models.JobGroupData{Name: group, Jobs: []models.JobData{}}
	statuses := make([]models.ActivityStatus, 0, len(keys))
	for _, key := range keys {
		triggers, err := s.scheduler.TriggersOfJob(ctx, key)
		if err != nil {
			return models.JobGroupData{}, fmt.Errorf("triggers of job %s: %w", key, err)
		}
		job := models.JobData{
			Name:      key.Name,
			Group:     key.Group,
			UniqueKey: key.String(),
			Triggers:  []models.TriggerData{},
		}
		jobStatuses := make([]models.ActivityStatus, 0, len(triggers))
		for _, t := range triggers {
			td, err := s.triggerData(ctx, t)
			if err != nil {
				return models.JobGroupData{}, err
			}
			job.Triggers = append(job.Triggers, td)
			jobStatuses = append(jobStatuses, td.Status)
		}
		job.Status = aggregate(jobStatuses)
		groupData.Jobs = append(groupData.Jobs, job)
		statuses = append(statuses, job.Status)
	}
	groupData.Status = aggregate(statuses)
	return groupData, nil
}

// aggregate folds child statuses: all equal gives that status, otherwise Mixed. A parent with no
// children will never fire again and counts as Complete.
func aggregate(statuses []models.ActivityStatus) models.ActivityStatus {
	if len(statuses) == 0 {
		return models.ActivityComplete
	}
	first := statuses[0]
	for _, st := range statuses[1:] {
		if st != first {
			return models.ActivityMixed
		}
	}
	return first
}

func (s *ClerkService) triggerData(ctx context.Context, t engine.Trigger) (models.TriggerData, error) {
	state, err := s.scheduler.TriggerState(ctx, t.Key)
	if err != nil {
		return models.TriggerData{}, fmt.Errorf("state of trigger %s: %w", t.Key, err)
	}
	return models.TriggerData{
		UniqueTriggerKey: t.Key.String(),
		Group:            t.Key.Group,
		Name:             t.Key.Name,
		Status:           triggerStatus(state),
		StartDate:        t.StartTime.UnixMilli(),
		EndDate:          unixMillis(t.EndTime),
		NextFireDate:     unixMillis(t.NextFireTime),
		PreviousFireDate: unixMillis(t.PreviousFireTime),
		TriggerType:      triggerType(t),
	}, nil
}

func triggerStatus(state engine.TriggerState) models.ActivityStatus {
	switch state {
	case engine.TriggerStatePaused:
		return models.ActivityPaused
	case engine.TriggerStateComplete:
		return models.ActivityComplete
	default:
		return models.ActivityActive
	}
}

func triggerType(t engine.Trigger) models.TriggerType {
	switch t.Kind {
	case engine.ScheduleCron:
		return models.TriggerType{Code: "cron", CronExpression: t.CronExpression}
	case engine.ScheduleSimple:
		return models.TriggerType{Code: "simple", RepeatInterval: t.RepeatInterval.Milliseconds(), RepeatCount: t.RepeatCount}
	default:
		return models.TriggerType{Code: string(t.Kind)}
	}
}

// GetJobDetailsData returns nil when the scheduler is shut down or the job is gone. A job whose
// type cannot be resolved yields details with a nil JobDetails and an empty data map.
func (s *ClerkService) GetJobDetailsData(ctx context.Context, name, group string) (data *models.JobDetailsData, err error) {
	start := time.Now()
	defer func() { s.observe("job_details", start, err) }()

	if s.scheduler.IsShutdown() {
		return nil, nil
	}
	job, err := s.scheduler.JobDetail(ctx, engine.NewJobKey(name, group))
	if errors.Is(err, engine.ErrJobTypeUnresolved) {
		return &models.JobDetailsData{JobDataMap: map[string]any{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("job detail: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	return &models.JobDetailsData{
		JobDetails: &models.JobDetails{
			Description:                   job.Description,
			JobType:                       job.JobType,
			Durable:                       job.Durable,
			ConcurrentExecutionDisallowed: job.ConcurrentExecutionDisallowed,
			PersistJobDataAfterExecution:  job.PersistJobDataAfterExecution,
			RequestsRecovery:              job.RequestsRecovery,
		},
		JobDataMap: dataMap(job.JobData),
	}, nil
}

// GetTriggerDetailsData returns nil when the scheduler is shut down or the trigger is gone.
func (s *ClerkService) GetTriggerDetailsData(ctx context.Context, name, group string) (data *models.TriggerDetailsData, err error) {
	start := time.Now()
	defer func() { s.observe("trigger_details", start, err) }()

	if s.scheduler.IsShutdown() {
		return nil, nil
	}
	t, err := s.scheduler.Trigger(ctx, engine.NewTriggerKey(name, group))
	if err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}
	if t == nil {
		return nil, nil
	}

	primary, err := s.triggerData(ctx, *t)
	if err != nil {
		return nil, err
	}
	return &models.TriggerDetailsData{
		PrimaryTriggerData: primary,
		SecondaryTriggerData: models.TriggerSecondaryData{
			Description:        t.Description,
			Priority:           t.Priority,
			MisfireInstruction: t.MisfireInstruction,
		},
		JobDataMap: dataMap(t.JobData),
	}, nil
}

// GetSchedulerDetails passes the scheduler metadata through.
func (s *ClerkService) GetSchedulerDetails(ctx context.Context) (details models.SchedulerDetails, err error) {
	start := time.Now()
	defer func() { s.observe("scheduler_details", start, err) }()

	md, err := s.scheduler.MetaData(ctx)
	if err != nil {
		return models.SchedulerDetails{}, fmt.Errorf("scheduler metadata: %w", err)
	}
	return models.SchedulerDetails{
		SchedulerName:               md.SchedulerName,
		SchedulerInstanceID:         md.SchedulerInstanceID,
		SchedulerType:               md.SchedulerType,
		SchedulerRemote:             md.SchedulerRemote,
		InStandbyMode:               md.InStandbyMode,
		Shutdown:                    md.Shutdown,
		Started:                     md.Started,
		JobStoreType:                md.JobStoreType,
		JobStoreClustered:           md.JobStoreClustered,
		JobStoreSupportsPersistence: md.JobStoreSupportsPersistence,
		NumberOfJobsExecuted:        md.NumberOfJobsExecuted,
		RunningSince:                unixMillis(md.RunningSince),
		ThreadPoolSize:              md.ThreadPoolSize,
		ThreadPoolType:              md.ThreadPoolType,
		Version:                     md.Version,
	}, nil
}

// GetScheduledJobTypes looks up the type of every job, one call per job. Jobs that vanished or
// whose type cannot be resolved are skipped.
func (s *ClerkService) GetScheduledJobTypes(ctx context.Context) (types []string, err error) {
	start := time.Now()
	defer func() { s.observe("job_types", start, err) }()

	types = []string{}
	if s.scheduler.IsShutdown() {
		return types, nil
	}
	keys, err := s.scheduler.JobKeys(ctx, engine.AnyGroup())
	if err != nil {
		return nil, fmt.Errorf("job keys: %w", err)
	}
	for _, key := range keys {
		job, err := s.scheduler.JobDetail(ctx, key)
		if errors.Is(err, engine.ErrJobTypeUnresolved) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("job detail %s: %w", key, err)
		}
		if job != nil {
			types = append(types, job.JobType)
		}
	}
	return types, nil
}

func unixMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func dataMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
