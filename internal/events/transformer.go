package events

import (
	"errors"
	"strings"
	"time"

	"github.com/isdelr/schedpanel/internal/engine"
	"github.com/isdelr/schedpanel/internal/models"
)

type mapping struct {
	scope     models.Scope
	eventType models.EventType
}

var knownKinds = map[engine.NotificationKind]mapping{
	engine.TriggerFired:       {models.ScopeTrigger, models.EventFired},
	engine.TriggerMisfired:    {models.ScopeTrigger, models.EventMisfired},
	engine.TriggerComplete:    {models.ScopeTrigger, models.EventComplete},
	engine.TriggerPaused:      {models.ScopeTrigger, models.EventPaused},
	engine.TriggerResumed:     {models.ScopeTrigger, models.EventResumed},
	engine.TriggerScheduled:   {models.ScopeTrigger, models.EventAdded},
	engine.TriggerUnscheduled: {models.ScopeTrigger, models.EventDeleted},
	engine.JobWasExecuted:     {models.ScopeJob, models.EventComplete},
	engine.JobAdded:           {models.ScopeJob, models.EventAdded},
	engine.JobDeleted:         {models.ScopeJob, models.EventDeleted},
	engine.JobPaused:          {models.ScopeJob, models.EventPaused},
	engine.JobResumed:         {models.ScopeJob, models.EventResumed},
	engine.SchedulerStarted:   {models.ScopeScheduler, models.EventStarted},
	engine.SchedulerStandby:   {models.ScopeScheduler, models.EventStandby},
	engine.SchedulerShutdown:  {models.ScopeScheduler, models.EventShutdown},
}

// Ordered so that more specific fragments win ("misfire" before "fire").
var typeFragments = []struct {
	fragment  string
	eventType models.EventType
}{
	{"misfire", models.EventMisfired},
	{"unschedul", models.EventDeleted},
	{"fire", models.EventFired},
	{"tobeexecuted", models.EventFired},
	{"executed", models.EventComplete},
	{"complete", models.EventComplete},
	{"finish", models.EventComplete},
	{"pause", models.EventPaused},
	{"resume", models.EventResumed},
	{"delete", models.EventDeleted},
	{"remove", models.EventDeleted},
	{"add", models.EventAdded},
	{"schedul", models.EventAdded},
	{"standby", models.EventStandby},
	{"shut", models.EventShutdown},
	{"stop", models.EventShutdown},
	{"start", models.EventStarted},
}

// Transform normalizes a scheduler notification into an event with the given id. It never fails:
// unknown kinds are classified by the words in their name.
func Transform(id int64, n engine.Notification, exec *engine.ExecutionContext, now time.Time) models.Event {
	m, ok := knownKinds[n.Kind]
	if !ok {
		m = guess(n.Kind)
	}

	fireInstanceID := n.FireInstanceID
	if fireInstanceID == "" && exec != nil {
		fireInstanceID = exec.FireInstanceID
	}

	return models.Event{
		ID:             id,
		Date:           now.UnixMilli(),
		Scope:          m.scope,
		EventType:      m.eventType,
		ItemKey:        n.Key,
		FireInstanceID: fireInstanceID,
		Faulted:        n.Err != nil,
		Errors:         errorMessages(n.Err),
	}
}

func guess(kind engine.NotificationKind) mapping {
	name := strings.ToLower(string(kind))

	m := mapping{scope: models.ScopeScheduler, eventType: models.EventFired}
	switch {
	case strings.Contains(name, "trigger"):
		m.scope = models.ScopeTrigger
	case strings.Contains(name, "job"):
		m.scope = models.ScopeJob
	}
	// "scheduler" would otherwise match the "schedul" fragment.
	verb := strings.ReplaceAll(name, "scheduler", "")
	for _, f := range typeFragments {
		if strings.Contains(verb, f.fragment) {
			m.eventType = f.eventType
			break
		}
	}
	return m
}

// errorMessages flattens an error chain, outermost first. Joined errors are expanded one level
// deeper than the error that joined them.
func errorMessages(err error) []models.ErrorMessage {
	if err == nil {
		return nil
	}
	var out []models.ErrorMessage
	var walk func(err error, level int)
	walk = func(err error, level int) {
		for err != nil {
			out = append(out, models.ErrorMessage{Text: err.Error(), Level: level})
			if joined, ok := err.(interface{ Unwrap() []error }); ok {
				for _, inner := range joined.Unwrap() {
					walk(inner, level+1)
				}
				return
			}
			err = errors.Unwrap(err)
			level++
		}
	}
	walk(err, 0)
	return out
}
