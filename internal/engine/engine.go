// Package engine defines the scheduler capability the panel observes and controls, and a local
// implementation backed by robfig/cron.
package engine

import (
	"context"
	"errors"
	"time"
)

// DefaultGroup is used when a job or trigger key is created without a group.
const DefaultGroup = "DEFAULT"

var (
	// ErrJobTypeUnresolved is returned by JobDetail when the job exists but its type is not
	// known to this process, which is common for remote schedulers.
	ErrJobTypeUnresolved = errors.New("job type cannot be resolved")
	ErrSchedulerShutdown = errors.New("scheduler is shut down")
	ErrJobNotFound       = errors.New("job not found")
	ErrTriggerNotFound   = errors.New("trigger not found")
	ErrJobExists         = errors.New("job already exists")
	ErrTriggerExists     = errors.New("trigger already exists")
	ErrInvalidSchedule   = errors.New("invalid schedule")
)

// JobKey identifies a job.
type JobKey struct {
	Group string
	Name  string
}

// NewJobKey builds a key, substituting DefaultGroup for an empty group.
func NewJobKey(name, group string) JobKey {
	if group == "" {
		group = DefaultGroup
	}
	return JobKey{Group: group, Name: name}
}

func (k JobKey) String() string { return k.Group + "." + k.Name }

// TriggerKey identifies a trigger.
type TriggerKey struct {
	Group string
	Name  string
}

func NewTriggerKey(name, group string) TriggerKey {
	if group == "" {
		group = DefaultGroup
	}
	return TriggerKey{Group: group, Name: name}
}

func (k TriggerKey) String() string { return k.Group + "." + k.Name }

// GroupMatcher selects job keys by group.
type GroupMatcher struct {
	Group string
	Any   bool
}

func AnyGroup() GroupMatcher { return GroupMatcher{Any: true} }

func GroupEquals(group string) GroupMatcher { return GroupMatcher{Group: group} }

func (m GroupMatcher) Matches(group string) bool { return m.Any || m.Group == group }

// TriggerState is the live state of a trigger as reported by the scheduler.
type TriggerState int

const (
	TriggerStateNone TriggerState = iota
	TriggerStateNormal
	TriggerStatePaused
	TriggerStateComplete
	TriggerStateError
	TriggerStateBlocked
)

// JobDetail holds the static definition of a job.
type JobDetail struct {
	Key                           JobKey
	Description                   string
	JobType                       string
	Durable                       bool
	ConcurrentExecutionDisallowed bool
	PersistJobDataAfterExecution  bool
	RequestsRecovery              bool
	JobData                       map[string]any
}

// ScheduleKind tells how a trigger computes fire times.
type ScheduleKind string

const (
	ScheduleCron   ScheduleKind = "cron"
	ScheduleSimple ScheduleKind = "simple"
)

// Trigger is a snapshot of a trigger definition and its fire times.
type Trigger struct {
	Key                TriggerKey
	JobKey             JobKey
	Description        string
	Priority           int
	MisfireInstruction int
	Kind               ScheduleKind
	CronExpression     string
	RepeatInterval     time.Duration
	RepeatCount        int // -1 repeats forever
	StartTime          time.Time
	EndTime            *time.Time
	NextFireTime       *time.Time
	PreviousFireTime   *time.Time
	JobData            map[string]any
}

// ExecutionContext describes one running fire instance.
type ExecutionContext struct {
	FireInstanceID string
	TriggerKey     TriggerKey
	JobKey         JobKey
	FireTime       time.Time
	JobData        map[string]any
}

// MetaData describes the scheduler itself.
type MetaData struct {
	SchedulerName               string
	SchedulerInstanceID         string
	SchedulerType               string
	SchedulerRemote             bool
	InStandbyMode               bool
	Shutdown                    bool
	Started                     bool
	JobStoreType                string
	JobStoreClustered           bool
	JobStoreSupportsPersistence bool
	NumberOfJobsExecuted        int
	RunningSince                *time.Time
	ThreadPoolSize              int
	ThreadPoolType              string
	Version                     string
}

// Reader is the query side of a scheduler. Implementations may be remote and every call may
// observe a different state of the scheduler.
type Reader interface {
	Name() string
	InstanceID() string
	IsShutdown() bool
	InStandbyMode() bool
	IsStarted() bool

	MetaData(ctx context.Context) (MetaData, error)
	CurrentlyExecutingJobs(ctx context.Context) ([]ExecutionContext, error)
	JobGroupNames(ctx context.Context) ([]string, error)
	JobKeys(ctx context.Context, matcher GroupMatcher) ([]JobKey, error)
	// JobDetail returns nil, nil when the job does not exist.
	JobDetail(ctx context.Context, key JobKey) (*JobDetail, error)
	// Trigger returns nil, nil when the trigger does not exist.
	Trigger(ctx context.Context, key TriggerKey) (*Trigger, error)
	TriggersOfJob(ctx context.Context, key JobKey) ([]Trigger, error)
	TriggerState(ctx context.Context, key TriggerKey) (TriggerState, error)
}

// Controller is the command side of a scheduler.
type Controller interface {
	Start(ctx context.Context) error
	Standby(ctx context.Context) error
	Shutdown(ctx context.Context) error
	PauseAll(ctx context.Context) error
	ResumeAll(ctx context.Context) error

	PauseJob(ctx context.Context, key JobKey) error
	ResumeJob(ctx context.Context, key JobKey) error
	DeleteJob(ctx context.Context, key JobKey) error
	TriggerJob(ctx context.Context, key JobKey) error

	PauseJobGroup(ctx context.Context, group string) error
	ResumeJobGroup(ctx context.Context, group string) error
	DeleteJobGroup(ctx context.Context, group string) error

	PauseTrigger(ctx context.Context, key TriggerKey) error
	ResumeTrigger(ctx context.Context, key TriggerKey) error
	UnscheduleJob(ctx context.Context, key TriggerKey) error
	ScheduleTrigger(ctx context.Context, t TriggerSpec) error
}

// Scheduler is a full scheduler capability.
type Scheduler interface {
	Reader
	Controller
}

// TriggerSpec describes a trigger to add to an existing job. Exactly one of Cron or Every must be
// set.
type TriggerSpec struct {
	Key         TriggerKey
	JobKey      JobKey
	Description string
	Priority    int
	Cron        string
	Every       time.Duration
	RepeatCount int // for Every: number of repeats after the first fire, -1 forever
	JobData     map[string]any
}
