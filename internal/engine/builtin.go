package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Built-in job types available to every Cron scheduler.
const (
	JobTypeNoop  = "noop"
	JobTypeLog   = "log"
	JobTypeSleep = "sleep"
	JobTypeFail  = "fail"
)

func registerBuiltins(e *Cron) {
	e.types[JobTypeNoop] = func(ctx context.Context, exec *ExecutionContext) error { return nil }
	e.types[JobTypeLog] = logJob
	e.types[JobTypeSleep] = sleepJob
	e.types[JobTypeFail] = failJob
}

func logJob(ctx context.Context, exec *ExecutionContext) error {
	msg, _ := exec.JobData["message"].(string)
	if msg == "" {
		msg = "Job executed"
	}
	log.Info().
		Str("job", exec.JobKey.String()).
		Str("trigger", exec.TriggerKey.String()).
		Str("fire_instance_id", exec.FireInstanceID).
		Msg(msg)
	return nil
}

// sleepJob waits for the "duration" data entry (default 1s) or until the scheduler shuts down.
func sleepJob(ctx context.Context, exec *ExecutionContext) error {
	d := time.Second
	if raw, ok := exec.JobData["duration"].(string); ok && raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		d = parsed
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func failJob(ctx context.Context, exec *ExecutionContext) error {
	msg, _ := exec.JobData["message"].(string)
	if msg == "" {
		msg = "job failed"
	}
	return fmt.Errorf("%s: %w", exec.JobKey, errors.New(msg))
}
