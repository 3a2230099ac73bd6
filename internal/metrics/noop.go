package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) EventIngested(mode string)                        {}
func (n *NoopSink) IngestDegraded()                                  {}
func (n *NoopSink) EventsEvicted(reason string, count int)           {}
func (n *NoopSink) EventLogSize(size int)                            {}
func (n *NoopSink) ClerkQuery(op string, d time.Duration, err error) {}
func (n *NoopSink) CommandExecuted(command string, err error)        {}
func (n *NoopSink) FeedClients(count int)                            {}
