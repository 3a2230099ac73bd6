package services

import (
	"context"
	"sort"
	"sync"

	"github.com/isdelr/schedpanel/internal/engine"
)

// fakeScheduler is an in-memory engine.Scheduler whose answers are set field by field.
type fakeScheduler struct {
	mu sync.Mutex

	shutdown, standby, started bool
	meta                       engine.MetaData
	executing                  []engine.ExecutionContext

	jobs       map[engine.JobKey]*engine.JobDetail
	unresolved map[engine.JobKey]bool
	triggers   map[engine.TriggerKey]*engine.Trigger
	states     map[engine.TriggerKey]engine.TriggerState

	// errs makes the named Reader method fail.
	errs map[string]error

	calls          []string
	executingCalls int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		jobs:       make(map[engine.JobKey]*engine.JobDetail),
		unresolved: make(map[engine.JobKey]bool),
		triggers:   make(map[engine.TriggerKey]*engine.Trigger),
		states:     make(map[engine.TriggerKey]engine.TriggerState),
		errs:       make(map[string]error),
	}
}

func (f *fakeScheduler) addJob(name, group, jobType string) engine.JobKey {
	key := engine.NewJobKey(name, group)
	f.jobs[key] = &engine.JobDetail{Key: key, JobType: jobType, JobData: map[string]any{"owner": "ops"}}
	return key
}

func (f *fakeScheduler) addTrigger(name string, job engine.JobKey, state engine.TriggerState) engine.TriggerKey {
	key := engine.NewTriggerKey(name, job.Group)
	f.triggers[key] = &engine.Trigger{Key: key, JobKey: job, Kind: engine.ScheduleCron, CronExpression: "0 * * * *", Priority: 5}
	f.states[key] = state
	return key
}

func (f *fakeScheduler) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeScheduler) Name() string        { return "fake" }
func (f *fakeScheduler) InstanceID() string  { return "fake-1" }
func (f *fakeScheduler) IsShutdown() bool    { return f.shutdown }
func (f *fakeScheduler) InStandbyMode() bool { return f.standby }
func (f *fakeScheduler) IsStarted() bool     { return f.started }

func (f *fakeScheduler) MetaData(ctx context.Context) (engine.MetaData, error) {
	if err := f.errs["MetaData"]; err != nil {
		return engine.MetaData{}, err
	}
	return f.meta, nil
}

func (f *fakeScheduler) CurrentlyExecutingJobs(ctx context.Context) ([]engine.ExecutionContext, error) {
	f.mu.Lock()
	f.executingCalls++
	f.mu.Unlock()
	return f.executing, nil
}

func (f *fakeScheduler) JobGroupNames(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var groups []string
	for key := range f.jobs {
		if !seen[key.Group] {
			seen[key.Group] = true
			groups = append(groups, key.Group)
		}
	}
	sort.Strings(groups)
	return groups, nil
}

func (f *fakeScheduler) JobKeys(ctx context.Context, matcher engine.GroupMatcher) ([]engine.JobKey, error) {
	var keys []engine.JobKey
	for key := range f.jobs {
		if matcher.Matches(key.Group) {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func (f *fakeScheduler) JobDetail(ctx context.Context, key engine.JobKey) (*engine.JobDetail, error) {
	if err := f.errs["JobDetail"]; err != nil {
		return nil, err
	}
	if f.unresolved[key] {
		return nil, engine.ErrJobTypeUnresolved
	}
	return f.jobs[key], nil
}

func (f *fakeScheduler) Trigger(ctx context.Context, key engine.TriggerKey) (*engine.Trigger, error) {
	return f.triggers[key], nil
}

func (f *fakeScheduler) TriggersOfJob(ctx context.Context, key engine.JobKey) ([]engine.Trigger, error) {
	var out []engine.Trigger
	for _, t := range f.triggers {
		if t.JobKey == key {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

func (f *fakeScheduler) TriggerState(ctx context.Context, key engine.TriggerKey) (engine.TriggerState, error) {
	return f.states[key], nil
}

func (f *fakeScheduler) Start(ctx context.Context) error {
	f.record("Start")
	f.started, f.standby = true, false
	return nil
}

func (f *fakeScheduler) Standby(ctx context.Context) error {
	f.record("Standby")
	f.standby = true
	return nil
}

func (f *fakeScheduler) Shutdown(ctx context.Context) error {
	f.record("Shutdown")
	f.shutdown = true
	return nil
}

func (f *fakeScheduler) PauseAll(ctx context.Context) error  { f.record("PauseAll"); return nil }
func (f *fakeScheduler) ResumeAll(ctx context.Context) error { f.record("ResumeAll"); return nil }

func (f *fakeScheduler) PauseJob(ctx context.Context, key engine.JobKey) error {
	f.record("PauseJob " + key.String())
	if _, ok := f.jobs[key]; !ok {
		return engine.ErrJobNotFound
	}
	return nil
}

func (f *fakeScheduler) ResumeJob(ctx context.Context, key engine.JobKey) error {
	f.record("ResumeJob " + key.String())
	return nil
}

func (f *fakeScheduler) DeleteJob(ctx context.Context, key engine.JobKey) error {
	f.record("DeleteJob " + key.String())
	delete(f.jobs, key)
	return nil
}

func (f *fakeScheduler) TriggerJob(ctx context.Context, key engine.JobKey) error {
	f.record("TriggerJob " + key.String())
	return nil
}

func (f *fakeScheduler) PauseJobGroup(ctx context.Context, group string) error {
	f.record("PauseJobGroup " + group)
	return nil
}

func (f *fakeScheduler) ResumeJobGroup(ctx context.Context, group string) error {
	f.record("ResumeJobGroup " + group)
	return nil
}

func (f *fakeScheduler) DeleteJobGroup(ctx context.Context, group string) error {
	f.record("DeleteJobGroup " + group)
	return nil
}

func (f *fakeScheduler) PauseTrigger(ctx context.Context, key engine.TriggerKey) error {
	f.record("PauseTrigger " + key.String())
	return nil
}

func (f *fakeScheduler) ResumeTrigger(ctx context.Context, key engine.TriggerKey) error {
	f.record("ResumeTrigger " + key.String())
	return nil
}

func (f *fakeScheduler) UnscheduleJob(ctx context.Context, key engine.TriggerKey) error {
	f.record("UnscheduleJob " + key.String())
	return nil
}

func (f *fakeScheduler) ScheduleTrigger(ctx context.Context, spec engine.TriggerSpec) error {
	f.record("ScheduleTrigger " + spec.Key.String())
	return nil
}

func (f *fakeScheduler) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}
