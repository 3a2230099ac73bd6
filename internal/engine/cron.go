package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// JobFunc is the body of a job type registered with Cron.
type JobFunc func(ctx context.Context, exec *ExecutionContext) error

// CronConfig configures the local scheduler.
type CronConfig struct {
	Name     string
	Workers  int // maximum concurrent executions
	Location *time.Location
}

type jobEntry struct {
	detail JobDetail
}

type triggerEntry struct {
	def      Trigger
	schedule cron.Schedule
	entryID  cron.EntryID
	paused   bool
	complete bool
	fired    int
	prev     *time.Time
}

// Cron adapts robfig/cron to the Scheduler capability. Jobs and triggers live in memory only.
type Cron struct {
	mu         sync.RWMutex
	name       string
	instanceID string
	workers    int
	parser     cron.Parser
	c          *cron.Cron
	listener   Listener
	types      map[string]JobFunc
	jobs       map[JobKey]*jobEntry
	triggers   map[TriggerKey]*triggerEntry
	executing  map[string]*ExecutionContext
	slots      chan struct{}
	wg         sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	started      bool
	standby      bool
	shutdown     bool
	runningSince *time.Time
	executed     int

	now func() time.Time
}

// NewCron creates a local scheduler in standby. Notifications go to listener, which may be nil.
func NewCron(cfg CronConfig, listener Listener) *Cron {
	if cfg.Name == "" {
		cfg.Name = "schedpanel"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())

	e := &Cron{
		name:       cfg.Name,
		instanceID: uuid.NewString(),
		workers:    cfg.Workers,
		parser:     parser,
		c:          cron.New(cron.WithParser(parser), cron.WithLocation(cfg.Location), cron.WithLogger(cronLogger{})),
		listener:   listener,
		types:      make(map[string]JobFunc),
		jobs:       make(map[JobKey]*jobEntry),
		triggers:   make(map[TriggerKey]*triggerEntry),
		executing:  make(map[string]*ExecutionContext),
		slots:      make(chan struct{}, cfg.Workers),
		ctx:        ctx,
		cancel:     cancel,
		standby:    true,
		now:        time.Now,
	}
	registerBuiltins(e)
	return e
}

// RegisterJobType makes a job type available to AddJob.
func (e *Cron) RegisterJobType(name string, fn JobFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types[name] = fn
}

// AddJob stores a job definition. The job type must be registered.
func (e *Cron) AddJob(ctx context.Context, detail JobDetail) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	if _, ok := e.types[detail.JobType]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("job %s: %w: %q", detail.Key, ErrJobTypeUnresolved, detail.JobType)
	}
	if _, ok := e.jobs[detail.Key]; ok {
		e.mu.Unlock()
		return fmt.Errorf("job %s: %w", detail.Key, ErrJobExists)
	}
	detail.JobData = copyData(detail.JobData)
	e.jobs[detail.Key] = &jobEntry{detail: detail}
	e.mu.Unlock()

	e.emit(ctx, Notification{Kind: JobAdded, Key: detail.Key.String()})
	return nil
}

// ScheduleTrigger attaches a new trigger to an existing job.
func (e *Cron) ScheduleTrigger(ctx context.Context, spec TriggerSpec) error {
	var (
		schedule cron.Schedule
		def      = Trigger{
			Key:         spec.Key,
			JobKey:      spec.JobKey,
			Description: spec.Description,
			Priority:    spec.Priority,
			StartTime:   e.now(),
			JobData:     copyData(spec.JobData),
		}
	)
	switch {
	case spec.Cron != "" && spec.Every > 0:
		return fmt.Errorf("trigger %s: %w: both cron and interval set", spec.Key, ErrInvalidSchedule)
	case spec.Cron != "":
		s, err := e.parser.Parse(spec.Cron)
		if err != nil {
			return fmt.Errorf("trigger %s: %w: %v", spec.Key, ErrInvalidSchedule, err)
		}
		schedule = s
		def.Kind = ScheduleCron
		def.CronExpression = spec.Cron
		def.RepeatCount = -1
	case spec.Every > 0:
		schedule = cron.Every(spec.Every)
		def.Kind = ScheduleSimple
		def.RepeatInterval = spec.Every
		def.RepeatCount = spec.RepeatCount
	default:
		return fmt.Errorf("trigger %s: %w: no schedule", spec.Key, ErrInvalidSchedule)
	}
	if def.Priority == 0 {
		def.Priority = 5
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	if _, ok := e.jobs[spec.JobKey]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("trigger %s: %w: %s", spec.Key, ErrJobNotFound, spec.JobKey)
	}
	if _, ok := e.triggers[spec.Key]; ok {
		e.mu.Unlock()
		return fmt.Errorf("trigger %s: %w", spec.Key, ErrTriggerExists)
	}
	key := spec.Key
	t := &triggerEntry{def: def, schedule: schedule}
	t.entryID = e.c.Schedule(schedule, cron.FuncJob(func() { e.fire(key) }))
	e.triggers[key] = t
	e.mu.Unlock()

	e.emit(ctx, Notification{Kind: TriggerScheduled, Key: key.String()})
	return nil
}

func (e *Cron) fire(key TriggerKey) {
	e.mu.Lock()
	t, ok := e.triggers[key]
	if !ok || e.shutdown || t.paused || t.complete {
		e.mu.Unlock()
		return
	}
	job, ok := e.jobs[t.def.JobKey]
	if !ok {
		e.mu.Unlock()
		return
	}
	if e.standby || (job.detail.ConcurrentExecutionDisallowed && e.runningLocked(job.detail.Key)) {
		e.mu.Unlock()
		e.emit(context.Background(), Notification{Kind: TriggerMisfired, Key: key.String()})
		return
	}
	now := e.now()
	t.fired++
	t.prev = &now
	last := t.def.Kind == ScheduleSimple && t.def.RepeatCount >= 0 && t.fired > t.def.RepeatCount
	if last {
		t.complete = true
		e.c.Remove(t.entryID)
	}
	detail := job.detail
	data := mergeData(detail.JobData, t.def.JobData)
	e.wg.Add(1)
	e.mu.Unlock()

	e.execute(detail, key, now, data)
	if last {
		e.emit(context.Background(), Notification{Kind: TriggerComplete, Key: key.String()})
	}
}

// execute runs one fire instance. The caller must have called e.wg.Add(1).
func (e *Cron) execute(detail JobDetail, trigger TriggerKey, fireTime time.Time, data map[string]any) {
	defer e.wg.Done()

	exec := &ExecutionContext{
		FireInstanceID: uuid.NewString(),
		TriggerKey:     trigger,
		JobKey:         detail.Key,
		FireTime:       fireTime,
		JobData:        data,
	}

	e.slots <- struct{}{}
	e.mu.Lock()
	fn := e.types[detail.JobType]
	e.executing[exec.FireInstanceID] = exec
	e.mu.Unlock()

	e.emit(context.Background(), Notification{Kind: TriggerFired, Key: trigger.String(), FireInstanceID: exec.FireInstanceID}, exec)
	err := runJob(e.ctx, fn, exec)

	e.mu.Lock()
	delete(e.executing, exec.FireInstanceID)
	e.executed++
	e.mu.Unlock()
	<-e.slots

	if err != nil {
		log.Warn().Err(err).Str("job", detail.Key.String()).Str("fire_instance_id", exec.FireInstanceID).Msg("Job execution failed")
	}
	e.emit(context.Background(), Notification{Kind: JobWasExecuted, Key: detail.Key.String(), FireInstanceID: exec.FireInstanceID, Err: err}, exec)
}

func runJob(ctx context.Context, fn JobFunc, exec *ExecutionContext) (err error) {
	if fn == nil {
		return ErrJobTypeUnresolved
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx, exec)
}

func (e *Cron) runningLocked(key JobKey) bool {
	for _, exec := range e.executing {
		if exec.JobKey == key {
			return true
		}
	}
	return false
}

func (e *Cron) emit(ctx context.Context, n Notification, exec ...*ExecutionContext) {
	if e.listener == nil {
		return
	}
	var ec *ExecutionContext
	if len(exec) > 0 {
		ec = exec[0]
	}
	e.listener.Notify(ctx, n, ec)
}

func (e *Cron) emitAll(ctx context.Context, ns []Notification) {
	for _, n := range ns {
		e.emit(ctx, n)
	}
}

// Reader

func (e *Cron) Name() string       { return e.name }
func (e *Cron) InstanceID() string { return e.instanceID }

func (e *Cron) IsShutdown() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.shutdown
}

func (e *Cron) InStandbyMode() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.standby
}

func (e *Cron) IsStarted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

func (e *Cron) MetaData(ctx context.Context) (MetaData, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return MetaData{
		SchedulerName:        e.name,
		SchedulerInstanceID:  e.instanceID,
		SchedulerType:        "engine.Cron",
		InStandbyMode:        e.standby,
		Shutdown:             e.shutdown,
		Started:              e.started,
		JobStoreType:         "memory",
		NumberOfJobsExecuted: e.executed,
		RunningSince:         e.runningSince,
		ThreadPoolSize:       e.workers,
		ThreadPoolType:       "goroutine semaphore",
		Version:              "robfig/cron v3",
	}, nil
}

func (e *Cron) CurrentlyExecutingJobs(ctx context.Context) ([]ExecutionContext, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ExecutionContext, 0, len(e.executing))
	for _, exec := range e.executing {
		out = append(out, *exec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireTime.Before(out[j].FireTime) })
	return out, nil
}

func (e *Cron) JobGroupNames(ctx context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	seen := make(map[string]struct{})
	var groups []string
	for key := range e.jobs {
		if _, ok := seen[key.Group]; !ok {
			seen[key.Group] = struct{}{}
			groups = append(groups, key.Group)
		}
	}
	sort.Strings(groups)
	return groups, nil
}

func (e *Cron) JobKeys(ctx context.Context, matcher GroupMatcher) ([]JobKey, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.jobKeysLocked(matcher), nil
}

func (e *Cron) jobKeysLocked(matcher GroupMatcher) []JobKey {
	var keys []JobKey
	for key := range e.jobs {
		if matcher.Matches(key.Group) {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (e *Cron) JobDetail(ctx context.Context, key JobKey) (*JobDetail, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	job, ok := e.jobs[key]
	if !ok {
		return nil, nil
	}
	if _, ok := e.types[job.detail.JobType]; !ok {
		return nil, fmt.Errorf("job %s: %w", key, ErrJobTypeUnresolved)
	}
	d := job.detail
	d.JobData = copyData(d.JobData)
	return &d, nil
}

func (e *Cron) Trigger(ctx context.Context, key TriggerKey) (*Trigger, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.triggers[key]
	if !ok {
		return nil, nil
	}
	snap := e.snapshotLocked(t)
	return &snap, nil
}

func (e *Cron) TriggersOfJob(ctx context.Context, key JobKey) ([]Trigger, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Trigger
	for _, t := range e.triggersOfLocked(key) {
		out = append(out, e.snapshotLocked(t))
	}
	return out, nil
}

func (e *Cron) TriggerState(ctx context.Context, key TriggerKey) (TriggerState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.triggers[key]
	switch {
	case !ok:
		return TriggerStateNone, nil
	case t.complete:
		return TriggerStateComplete, nil
	case t.paused:
		return TriggerStatePaused, nil
	}
	if job, ok := e.jobs[t.def.JobKey]; ok && job.detail.ConcurrentExecutionDisallowed && e.runningLocked(job.detail.Key) {
		return TriggerStateBlocked, nil
	}
	return TriggerStateNormal, nil
}

func (e *Cron) triggersOfLocked(key JobKey) []*triggerEntry {
	var out []*triggerEntry
	for _, t := range e.triggers {
		if t.def.JobKey == key {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].def.Key.String() < out[j].def.Key.String() })
	return out
}

func (e *Cron) snapshotLocked(t *triggerEntry) Trigger {
	snap := t.def
	snap.JobData = copyData(t.def.JobData)
	snap.PreviousFireTime = t.prev
	if !t.complete {
		next := e.c.Entry(t.entryID).Next
		if next.IsZero() {
			next = t.schedule.Next(e.now())
		}
		snap.NextFireTime = &next
	}
	return snap
}

// Controller

func (e *Cron) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	if !e.started {
		e.c.Start()
		e.started = true
		now := e.now()
		e.runningSince = &now
	}
	e.standby = false
	e.mu.Unlock()

	log.Info().Str("scheduler", e.name).Msg("Scheduler started")
	e.emit(ctx, Notification{Kind: SchedulerStarted})
	return nil
}

func (e *Cron) Standby(ctx context.Context) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	e.standby = true
	e.mu.Unlock()

	log.Info().Str("scheduler", e.name).Msg("Scheduler in standby mode")
	e.emit(ctx, Notification{Kind: SchedulerStandby})
	return nil
}

// Shutdown stops firing, cancels running jobs and waits for them until ctx is done.
func (e *Cron) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return nil
	}
	e.shutdown = true
	e.standby = false
	e.mu.Unlock()

	e.cancel()
	stopped := e.c.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		e.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	log.Info().Str("scheduler", e.name).Msg("Scheduler shut down")
	e.emit(context.Background(), Notification{Kind: SchedulerShutdown})
	return err
}

func (e *Cron) PauseAll(ctx context.Context) error {
	return e.setTriggersPaused(ctx, func(*triggerEntry) bool { return true }, true)
}

func (e *Cron) ResumeAll(ctx context.Context) error {
	return e.setTriggersPaused(ctx, func(*triggerEntry) bool { return true }, false)
}

func (e *Cron) PauseTrigger(ctx context.Context, key TriggerKey) error {
	return e.setTriggerPaused(ctx, key, true)
}

func (e *Cron) ResumeTrigger(ctx context.Context, key TriggerKey) error {
	return e.setTriggerPaused(ctx, key, false)
}

func (e *Cron) setTriggerPaused(ctx context.Context, key TriggerKey, paused bool) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	t, ok := e.triggers[key]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("trigger %s: %w", key, ErrTriggerNotFound)
	}
	t.paused = paused
	e.mu.Unlock()

	kind := TriggerResumed
	if paused {
		kind = TriggerPaused
	}
	e.emit(ctx, Notification{Kind: kind, Key: key.String()})
	return nil
}

func (e *Cron) setTriggersPaused(ctx context.Context, match func(*triggerEntry) bool, paused bool) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	kind := TriggerResumed
	if paused {
		kind = TriggerPaused
	}
	var ns []Notification
	for key, t := range e.triggers {
		if match(t) && t.paused != paused {
			t.paused = paused
			ns = append(ns, Notification{Kind: kind, Key: key.String()})
		}
	}
	e.mu.Unlock()

	e.emitAll(ctx, ns)
	return nil
}

func (e *Cron) PauseJob(ctx context.Context, key JobKey) error {
	return e.setJobsPaused(ctx, func(k JobKey) bool { return k == key }, true, true)
}

func (e *Cron) ResumeJob(ctx context.Context, key JobKey) error {
	return e.setJobsPaused(ctx, func(k JobKey) bool { return k == key }, false, true)
}

func (e *Cron) PauseJobGroup(ctx context.Context, group string) error {
	return e.setJobsPaused(ctx, func(k JobKey) bool { return k.Group == group }, true, false)
}

func (e *Cron) ResumeJobGroup(ctx context.Context, group string) error {
	return e.setJobsPaused(ctx, func(k JobKey) bool { return k.Group == group }, false, false)
}

func (e *Cron) setJobsPaused(ctx context.Context, match func(JobKey) bool, paused, mustExist bool) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	kind := JobResumed
	if paused {
		kind = JobPaused
	}
	var ns []Notification
	for key := range e.jobs {
		if !match(key) {
			continue
		}
		for _, t := range e.triggersOfLocked(key) {
			t.paused = paused
		}
		ns = append(ns, Notification{Kind: kind, Key: key.String()})
	}
	e.mu.Unlock()

	if mustExist && len(ns) == 0 {
		return ErrJobNotFound
	}
	e.emitAll(ctx, ns)
	return nil
}

func (e *Cron) DeleteJob(ctx context.Context, key JobKey) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	if _, ok := e.jobs[key]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("job %s: %w", key, ErrJobNotFound)
	}
	ns := e.deleteJobLocked(key)
	e.mu.Unlock()

	e.emitAll(ctx, ns)
	return nil
}

func (e *Cron) DeleteJobGroup(ctx context.Context, group string) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	var ns []Notification
	for _, key := range e.jobKeysLocked(GroupEquals(group)) {
		ns = append(ns, e.deleteJobLocked(key)...)
	}
	e.mu.Unlock()

	e.emitAll(ctx, ns)
	return nil
}

func (e *Cron) deleteJobLocked(key JobKey) []Notification {
	var ns []Notification
	for _, t := range e.triggersOfLocked(key) {
		e.c.Remove(t.entryID)
		delete(e.triggers, t.def.Key)
		ns = append(ns, Notification{Kind: TriggerUnscheduled, Key: t.def.Key.String()})
	}
	delete(e.jobs, key)
	return append(ns, Notification{Kind: JobDeleted, Key: key.String()})
}

// UnscheduleJob removes a trigger. A non-durable job left without triggers is deleted too.
func (e *Cron) UnscheduleJob(ctx context.Context, key TriggerKey) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	t, ok := e.triggers[key]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("trigger %s: %w", key, ErrTriggerNotFound)
	}
	e.c.Remove(t.entryID)
	delete(e.triggers, key)
	ns := []Notification{{Kind: TriggerUnscheduled, Key: key.String()}}
	if job, ok := e.jobs[t.def.JobKey]; ok && !job.detail.Durable && len(e.triggersOfLocked(job.detail.Key)) == 0 {
		delete(e.jobs, job.detail.Key)
		ns = append(ns, Notification{Kind: JobDeleted, Key: job.detail.Key.String()})
	}
	e.mu.Unlock()

	e.emitAll(ctx, ns)
	return nil
}

// TriggerJob runs a job once, now, outside its regular triggers.
func (e *Cron) TriggerJob(ctx context.Context, key JobKey) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrSchedulerShutdown
	}
	job, ok := e.jobs[key]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("job %s: %w", key, ErrJobNotFound)
	}
	detail := job.detail
	e.wg.Add(1)
	e.mu.Unlock()

	trigger := NewTriggerKey("MT_"+uuid.NewString(), "MANUAL_TRIGGER")
	go e.execute(detail, trigger, e.now(), copyData(detail.JobData))
	return nil
}

func copyData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func mergeData(job, trigger map[string]any) map[string]any {
	out := copyData(job)
	for k, v := range trigger {
		out[k] = v
	}
	return out
}

// cronLogger routes robfig/cron's internal logging into zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
