package models

import (
	"fmt"
	"strings"
)

// Scope tells which kind of entity an event concerns.
type Scope int

const (
	ScopeScheduler Scope = iota
	ScopeJob
	ScopeTrigger
)

var scopeNames = map[Scope]string{
	ScopeScheduler: "scheduler",
	ScopeJob:       "job",
	ScopeTrigger:   "trigger",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// MarshalText renders the scope by name for JSON and storage.
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any value produced by MarshalText. Unknown names decode to the scheduler scope.
func (s *Scope) UnmarshalText(b []byte) error {
	*s = ParseScope(string(b))
	return nil
}

// ParseScope returns the scope with the given name, falling back to ScopeScheduler.
func ParseScope(name string) Scope {
	name = strings.ToLower(strings.TrimSpace(name))
	for scope, n := range scopeNames {
		if n == name {
			return scope
		}
	}
	return ScopeScheduler
}

// EventType is the lifecycle transition an event records.
type EventType int

const (
	EventFired EventType = iota + 1
	EventComplete
	EventMisfired
	EventPaused
	EventResumed
	EventAdded
	EventDeleted
	EventStarted
	EventStandby
	EventShutdown
)

var eventTypeNames = map[EventType]string{
	EventFired:    "fired",
	EventComplete: "complete",
	EventMisfired: "misfired",
	EventPaused:   "paused",
	EventResumed:  "resumed",
	EventAdded:    "added",
	EventDeleted:  "deleted",
	EventStarted:  "started",
	EventStandby:  "standby",
	EventShutdown: "shutdown",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(t))
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(b []byte) error {
	*t = ParseEventType(string(b))
	return nil
}

// ParseEventType returns the event type with the given name, falling back to EventFired.
func ParseEventType(name string) EventType {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range eventTypeNames {
		if n == name {
			return t
		}
	}
	return EventFired
}

// ErrorMessage is one entry of a faulted event's error chain. Level is the nesting depth,
// 0 for the outermost error.
type ErrorMessage struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// Event represents a scheduler occurrence captured by the event hub. Events are never mutated
// after they are created.
type Event struct {
	ID             int64          `json:"id"`
	Date           int64          `json:"date"` // Unix milliseconds, ingestion time
	Scope          Scope          `json:"scope"`
	EventType      EventType      `json:"eventType"`
	ItemKey        string         `json:"itemKey,omitempty"`
	FireInstanceID string         `json:"fireInstanceId,omitempty"`
	Faulted        bool           `json:"faulted"`
	Errors         []ErrorMessage `json:"errors,omitempty"`
}
