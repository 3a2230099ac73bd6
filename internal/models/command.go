package models

// AddTriggerInput is the body of the add trigger command. Exactly one of CronExpression or
// RepeatInterval must be set.
type AddTriggerInput struct {
	Name           string         `json:"name"`
	Group          string         `json:"group"`
	JobName        string         `json:"jobName"`
	JobGroup       string         `json:"jobGroup"`
	Description    string         `json:"description,omitempty"`
	Priority       int            `json:"priority,omitempty"`
	CronExpression string         `json:"cronExpression,omitempty"`
	RepeatInterval int64          `json:"repeatInterval,omitempty"` // milliseconds
	RepeatCount    int            `json:"repeatCount,omitempty"`    // -1 repeats forever
	JobDataMap     map[string]any `json:"jobDataMap,omitempty"`
}
