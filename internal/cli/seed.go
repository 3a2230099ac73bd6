package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/schedpanel/internal/config"
	"github.com/isdelr/schedpanel/internal/engine"
)

// seedJobs adds every job of the file and schedules its triggers. Unnamed triggers are named
// after their job and share its group.
func seedJobs(ctx context.Context, scheduler *engine.Cron, file *config.JobsFile) error {
	for _, job := range file.Jobs {
		key := engine.NewJobKey(job.Name, job.Group)
		err := scheduler.AddJob(ctx, engine.JobDetail{
			Key:                           key,
			Description:                   job.Description,
			JobType:                       job.Type,
			Durable:                       job.Durable || len(job.Triggers) == 0,
			ConcurrentExecutionDisallowed: job.ConcurrentExecutionDisallowed,
			JobData:                       job.Data,
		})
		if err != nil {
			return fmt.Errorf("add job %s: %w", key, err)
		}

		for i, t := range job.Triggers {
			if t.Name == "" {
				t.Name = fmt.Sprintf("%s-%d", job.Name, i+1)
			}
			if t.Group == "" {
				t.Group = key.Group
			}
			every, err := t.Interval()
			if err != nil {
				return fmt.Errorf("trigger %s of job %s: %w", t.Name, key, err)
			}
			triggerKey := engine.NewTriggerKey(t.Name, t.Group)
			err = scheduler.ScheduleTrigger(ctx, engine.TriggerSpec{
				Key:         triggerKey,
				JobKey:      key,
				Description: t.Description,
				Priority:    t.Priority,
				Cron:        t.Cron,
				Every:       every,
				RepeatCount: t.Repeats(),
				JobData:     t.Data,
			})
			if err != nil {
				return fmt.Errorf("schedule trigger %s: %w", triggerKey, err)
			}
		}
		log.Info().Str("job", key.String()).Int("triggers", len(job.Triggers)).Msg("Seeded job")
	}
	return nil
}
