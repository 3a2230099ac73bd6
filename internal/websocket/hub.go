package websocket

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/schedpanel/internal/metrics"
	"github.com/isdelr/schedpanel/internal/models"
)

// Hub maintains the set of active feed clients and broadcasts scheduler events to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Encoded events waiting to be fanned out.
	broadcast chan outbound

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Closed once Run has returned.
	done chan struct{}

	metrics metrics.Sink
}

type outbound struct {
	scope   models.Scope
	message []byte
}

// NewHub creates a new Hub.
func NewHub(sink metrics.Sink) *Hub {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Hub{
		broadcast:  make(chan outbound, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		metrics:    sink,
	}
}

// Publish queues an event for every client whose subscription matches. It never blocks: when
// the queue is full the event is dropped from the live feed, pollers still get it from the log.
func (h *Hub) Publish(e models.Event) {
	msg, err := NewEventMessage(e)
	if err != nil {
		log.Error().Err(err).Int64("event_id", e.ID).Msg("Failed to encode feed event")
		return
	}
	select {
	case h.broadcast <- outbound{scope: e.Scope, message: msg}:
	default:
		log.Warn().Int64("event_id", e.ID).Msg("Feed queue full, event not broadcast")
	}
}

// Attach registers c with the running hub. It reports false once the hub has stopped.
func (h *Hub) Attach(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Detach unregisters c. After the hub stopped it returns at once; Run already dropped c.
func (h *Hub) Detach(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Run starts the Hub's message processing loop. It returns when ctx is done, dropping every
// client. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.metrics.FeedClients(len(h.clients))
			log.Info().Int("total_clients", len(h.clients)).Msg("Feed client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Feed client disconnected")
			}
		case out := <-h.broadcast:
			for client := range h.clients {
				if !client.Wants(out.scope) {
					continue
				}
				if !client.Enqueue(out.message) {
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.closeSend()
	h.metrics.FeedClients(len(h.clients))
}
