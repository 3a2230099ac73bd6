package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// JobsFile seeds the bundled scheduler with jobs and their triggers.
type JobsFile struct {
	Jobs []JobSpec `yaml:"jobs"`
}

// JobSpec is one job in the jobs file.
type JobSpec struct {
	Name                          string         `yaml:"name"`
	Group                         string         `yaml:"group"`
	Type                          string         `yaml:"type"`
	Description                   string         `yaml:"description"`
	Durable                       bool           `yaml:"durable"`
	ConcurrentExecutionDisallowed bool           `yaml:"concurrentExecutionDisallowed"`
	Data                          map[string]any `yaml:"data"`
	Triggers                      []TriggerSpec  `yaml:"triggers"`
}

// TriggerSpec is one trigger of a job. Exactly one of Cron or Every is set.
type TriggerSpec struct {
	Name        string         `yaml:"name"`
	Group       string         `yaml:"group"`
	Description string         `yaml:"description"`
	Priority    int            `yaml:"priority"`
	Cron        string         `yaml:"cron"`
	Every       string         `yaml:"every"`
	RepeatCount *int           `yaml:"repeatCount"`
	Data        map[string]any `yaml:"data"`
}

// Interval parses Every. Zero means the trigger is a cron trigger.
func (t TriggerSpec) Interval() (time.Duration, error) {
	if t.Every == "" {
		return 0, nil
	}
	return time.ParseDuration(t.Every)
}

// Repeats returns RepeatCount, defaulting to forever.
func (t TriggerSpec) Repeats() int {
	if t.RepeatCount == nil {
		return -1
	}
	return *t.RepeatCount
}

// LoadJobsFile reads and validates a YAML jobs file.
func LoadJobsFile(path string) (*JobsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}
	return ParseJobs(data)
}

// ParseJobs decodes and validates jobs file contents.
func ParseJobs(data []byte) (*JobsFile, error) {
	var f JobsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: jobs file: %v", ErrInvalid, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *JobsFile) validate() error {
	var errs []error
	for i, job := range f.Jobs {
		if job.Name == "" {
			errs = append(errs, fmt.Errorf("%w: jobs[%d]: name is required", ErrInvalid, i))
		}
		if job.Type == "" {
			errs = append(errs, fmt.Errorf("%w: jobs[%d]: type is required", ErrInvalid, i))
		}
		for j, t := range job.Triggers {
			every, err := t.Interval()
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: jobs[%d].triggers[%d]: every: %v", ErrInvalid, i, j, err))
				continue
			}
			if (t.Cron == "") == (every <= 0) {
				errs = append(errs, fmt.Errorf("%w: jobs[%d].triggers[%d]: exactly one of cron or every is required", ErrInvalid, i, j))
			}
		}
	}
	return errors.Join(errs...)
}
