package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/schedpanel/internal/events"
	ws "github.com/isdelr/schedpanel/internal/websocket"
)

const replayTimeout = 5 * time.Second

// FeedHandler upgrades HTTP connections to the live event feed.
type FeedHandler struct {
	hub      *ws.Hub
	events   EventSource
	upgrader websocket.Upgrader
}

// NewFeedHandler creates a new FeedHandler. A nil allowOrigin accepts every origin.
func NewFeedHandler(hub *ws.Hub, events EventSource, allowOrigin func(r *http.Request) bool) *FeedHandler {
	if allowOrigin == nil {
		allowOrigin = func(r *http.Request) bool { return true }
	}
	return &FeedHandler{
		hub:    hub,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
	}
}

// AllowOrigins accepts websocket upgrades whose Origin matches one of origins, using the same
// patterns as the CORS allow list: "*" matches everything and one "*" inside a pattern matches
// any run of characters. Requests without an Origin header and same-host requests pass.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		patterns = append(patterns, strings.ToLower(o))
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		origin = strings.ToLower(origin)
		for _, p := range patterns {
			if matchOrigin(p, origin) {
				return true
			}
		}
		return false
	}
}

func matchOrigin(pattern, origin string) bool {
	if pattern == "*" {
		return true
	}
	prefix, suffix, wild := strings.Cut(pattern, "*")
	if !wild {
		return pattern == origin
	}
	return len(origin) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix)
}

// Serve handles the websocket connection request.
func (h *FeedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn)
	if !h.hub.Attach(client) {
		log.Warn().Msg("Feed hub stopped, closing websocket connection")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	if r.URL.Query().Has("since") {
		h.replay(client, sinceParam(r))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		client.WritePump()
	}()
	go func() {
		defer wg.Done()
		client.ReadPump(h.handleMessage)
	}()

	go func() {
		wg.Wait()
		h.hub.Detach(client)
	}()
}

// handleMessage processes a message received from a feed client.
func (h *FeedHandler) handleMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Error().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		client.Enqueue(ws.NewErrorMessage("Malformed message"))
		return
	}

	switch msg.Action {
	case ws.ActionSubscribe:
		var payload ws.SubscribePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				client.Enqueue(ws.NewErrorMessage("Invalid payload for subscribe"))
				return
			}
		}
		client.Subscribe(payload.Scopes)

	case ws.ActionReplay:
		var payload ws.ReplayPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				client.Enqueue(ws.NewErrorMessage("Invalid payload for replay"))
				return
			}
		}
		h.replay(client, payload.Since)

	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		client.Enqueue(ws.NewErrorMessage("Unknown action: " + msg.Action))
	}
}

func (h *FeedHandler) replay(client *ws.Client, since int64) {
	ctx, cancel := context.WithTimeout(context.Background(), replayTimeout)
	defer cancel()

	list, err := h.events.List(ctx, since)
	if err != nil && !errors.Is(err, events.ErrDegraded) {
		log.Error().Err(err).Int64("since", since).Msg("Failed to replay events")
		client.Enqueue(ws.NewErrorMessage("Failed to replay events"))
		return
	}
	msg, err := ws.NewEventsMessage(list)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode replayed events")
		return
	}
	client.Enqueue(msg)
}
