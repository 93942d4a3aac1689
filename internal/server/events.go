package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Event types published on the event stream.
const (
	EventConnected      = "connected"
	EventCatalogChanged = "catalog_changed"
	EventIndexWarmed    = "index_warmed"
)

// clientBuffer bounds the events queued for a slow client before it is dropped.
const clientBuffer = 16

// Event is one server-sent notification.
type Event struct {
	Type    string `json:"type"`
	Catalog string `json:"catalog,omitempty"`
	Indexed int    `json:"indexed,omitempty"`
	AtMs    int64  `json:"at_ms"`
}

type client struct {
	events chan []byte
	id     int
}

// Broadcaster fans events out to connected event-stream clients.
type Broadcaster struct {
	clients map[int]*client
	mu      sync.Mutex
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[int]*client)}
}

func (b *Broadcaster) add() *client {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	c := &client{id: b.nextID, events: make(chan []byte, clientBuffer)}
	b.clients[c.id] = c
	log.Debug().Int("clientId", c.id).Int("totalClients", len(b.clients)).Msg("Event client connected")
	return c
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c.id]; ok {
		delete(b.clients, c.id)
		close(c.events)
	}
	log.Debug().Int("clientId", c.id).Int("totalClients", len(b.clients)).Msg("Event client disconnected")
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Publish queues ev for every client. A client whose queue is full is
// disconnected rather than allowed to block the publisher.
func (b *Broadcaster) Publish(ev Event) {
	if ev.AtMs == 0 {
		ev.AtMs = time.Now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		select {
		case c.events <- data:
		default:
			log.Warn().Int("clientId", id).Msg("Event client too slow, disconnecting")
			delete(b.clients, id)
			close(c.events)
		}
	}
}

// ServeHTTP streams events to one client until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := b.add()
	defer b.remove(c)

	hello, _ := json.Marshal(Event{Type: EventConnected, AtMs: time.Now().UnixMilli()})
	fmt.Fprintf(w, "data: %s\n\n", hello)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-c.events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
