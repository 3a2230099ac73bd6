package metrics

import "time"

// Sink records panel metrics. Implementations MUST NOT block or propagate errors.
type Sink interface {
	// Event hub
	EventIngested(mode string)
	IngestDegraded()
	EventsEvicted(reason string, n int)
	EventLogSize(n int)

	// Clerk and commands
	ClerkQuery(op string, d time.Duration, err error)
	CommandExecuted(command string, err error)

	// Live feed
	FeedClients(n int)
}

// Eviction reasons for EventsEvicted.
const (
	EvictCapacity  = "capacity"
	EvictRetention = "retention"
)

// Hub modes for EventIngested.
const (
	ModeLocal   = "local"
	ModeCluster = "cluster"
)
