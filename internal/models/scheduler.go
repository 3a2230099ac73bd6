package models

// SchedulerStatus is the overall state reported in a scheduler snapshot.
type SchedulerStatus string

const (
	SchedulerEmpty    SchedulerStatus = "empty"
	SchedulerReady    SchedulerStatus = "ready"
	SchedulerStarted  SchedulerStatus = "started"
	SchedulerShutdown SchedulerStatus = "shutdown"
)

// ActivityStatus is the state of a single trigger as shown to clients.
type ActivityStatus string

const (
	ActivityActive   ActivityStatus = "active"
	ActivityPaused   ActivityStatus = "paused"
	ActivityComplete ActivityStatus = "complete"
	ActivityMixed    ActivityStatus = "mixed"
)

// SchedulerData is a best-effort point-in-time view of a live scheduler. It is assembled from
// several independent queries, so fields may disagree if the scheduler changed in between.
type SchedulerData struct {
	Name         string             `json:"name"`
	InstanceID   string             `json:"instanceId"`
	Status       SchedulerStatus    `json:"status"`
	RunningSince *int64             `json:"runningSince,omitempty"`
	JobsTotal    int                `json:"jobsTotal"`
	JobsExecuted int                `json:"jobsExecuted"`
	JobGroups    []JobGroupData     `json:"jobGroups"`
	InProgress   []ExecutingJobInfo `json:"inProgress"`
	Events       []Event            `json:"events,omitempty"`
}

// JobGroupData is one job group with its jobs.
type JobGroupData struct {
	Name   string         `json:"name"`
	Status ActivityStatus `json:"status"`
	Jobs   []JobData      `json:"jobs"`
}

// JobData is one job with its triggers.
type JobData struct {
	Name      string         `json:"name"`
	Group     string         `json:"group"`
	UniqueKey string         `json:"uniqueKey"`
	Status    ActivityStatus `json:"status"`
	Triggers  []TriggerData  `json:"triggers"`
}

// TriggerData describes a trigger in the scheduler inventory. Times are Unix milliseconds.
type TriggerData struct {
	UniqueTriggerKey string         `json:"uniqueTriggerKey"`
	Group            string         `json:"group"`
	Name             string         `json:"name"`
	Status           ActivityStatus `json:"status"`
	StartDate        int64          `json:"startDate"`
	EndDate          *int64         `json:"endDate,omitempty"`
	NextFireDate     *int64         `json:"nextFireDate,omitempty"`
	PreviousFireDate *int64         `json:"previousFireDate,omitempty"`
	TriggerType      TriggerType    `json:"triggerType"`
}

// TriggerType describes how a trigger computes its fire times.
type TriggerType struct {
	Code           string `json:"code"` // "cron" or "simple"
	CronExpression string `json:"cronExpression,omitempty"`
	RepeatInterval int64  `json:"repeatInterval,omitempty"` // milliseconds
	RepeatCount    int    `json:"repeatCount,omitempty"`    // -1 repeats forever
}

// ExecutingJobInfo identifies one currently running fire instance.
type ExecutingJobInfo struct {
	UniqueTriggerKey string `json:"uniqueTriggerKey"`
	FireInstanceID   string `json:"fireInstanceId"`
}

// JobDetails holds the static properties of a job. A nil *JobDetails inside JobDetailsData means
// the job exists but its type could not be resolved by this process.
type JobDetails struct {
	Description                   string `json:"description,omitempty"`
	JobType                       string `json:"jobType"`
	Durable                       bool   `json:"durable"`
	ConcurrentExecutionDisallowed bool   `json:"concurrentExecutionDisallowed"`
	PersistJobDataAfterExecution  bool   `json:"persistJobDataAfterExecution"`
	RequestsRecovery              bool   `json:"requestsRecovery"`
}

// JobDetailsData is the per-job details response.
type JobDetailsData struct {
	JobDetails *JobDetails    `json:"jobDetails"`
	JobDataMap map[string]any `json:"jobDataMap"`
}

// TriggerSecondaryData holds the less frequently displayed trigger properties.
type TriggerSecondaryData struct {
	Description        string `json:"description,omitempty"`
	Priority           int    `json:"priority"`
	MisfireInstruction int    `json:"misfireInstruction"`
}

// TriggerDetailsData is the per-trigger details response.
type TriggerDetailsData struct {
	PrimaryTriggerData   TriggerData          `json:"primaryTriggerData"`
	SecondaryTriggerData TriggerSecondaryData `json:"secondaryTriggerData"`
	JobDataMap           map[string]any       `json:"jobDataMap"`
}

// SchedulerDetails is a passthrough of the scheduler metadata.
type SchedulerDetails struct {
	SchedulerName               string `json:"schedulerName"`
	SchedulerInstanceID         string `json:"schedulerInstanceId"`
	SchedulerType               string `json:"schedulerType"`
	SchedulerRemote             bool   `json:"schedulerRemote"`
	InStandbyMode               bool   `json:"inStandbyMode"`
	Shutdown                    bool   `json:"shutdown"`
	Started                     bool   `json:"started"`
	JobStoreType                string `json:"jobStoreType"`
	JobStoreClustered           bool   `json:"jobStoreClustered"`
	JobStoreSupportsPersistence bool   `json:"jobStoreSupportsPersistence"`
	NumberOfJobsExecuted        int    `json:"numberOfJobsExecuted"`
	RunningSince                *int64 `json:"runningSince,omitempty"`
	ThreadPoolSize              int    `json:"threadPoolSize"`
	ThreadPoolType              string `json:"threadPoolType"`
	Version                     string `json:"version"`
}

// EnvironmentData describes the panel process to the client.
type EnvironmentData struct {
	SelfVersion     string `json:"selfVersion"`
	SchedulerEngine string `json:"schedulerEngine"`
	GoVersion       string `json:"goVersion"`
	Hostname        string `json:"hostname,omitempty"`
	Platform        string `json:"platform,omitempty"`
	HostUptime      uint64 `json:"hostUptime,omitempty"` // seconds
	TimelineSpan    int64  `json:"timelineSpan"`         // milliseconds
	IsReadOnly      bool   `json:"isReadOnly"`
	Clustered       bool   `json:"clustered"`
}
