package websocket

import (
	"encoding/json"

	"github.com/isdelr/schedpanel/internal/models"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Actions sent to clients.
const (
	ActionEvent  = "event"
	ActionEvents = "events"
	ActionError  = "error"
)

// Actions accepted from clients.
const (
	// ActionSubscribe narrows the feed to the scopes in the payload; an empty list means all.
	ActionSubscribe = "subscribe"
	// ActionReplay asks for the events after the cursor in the payload.
	ActionReplay = "replay"
)

// SubscribePayload is the payload of ActionSubscribe.
type SubscribePayload struct {
	Scopes []models.Scope `json:"scopes"`
}

// ReplayPayload is the payload of ActionReplay.
type ReplayPayload struct {
	Since int64 `json:"since"`
}

func encode(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Action: action, Payload: raw})
}

// NewEventMessage wraps a single event.
func NewEventMessage(e models.Event) ([]byte, error) {
	return encode(ActionEvent, e)
}

// NewEventsMessage wraps a replayed batch of events.
func NewEventsMessage(events []models.Event) ([]byte, error) {
	if events == nil {
		events = []models.Event{}
	}
	return encode(ActionEvents, events)
}

// NewErrorMessage wraps an error text for the client.
func NewErrorMessage(text string) []byte {
	msg, _ := encode(ActionError, map[string]string{"message": text})
	return msg
}
