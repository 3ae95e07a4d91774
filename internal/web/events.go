package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// EventBus fans NATS events out to SSE clients and keeps a ring buffer of recent events.
type EventBus struct {
	mu       sync.RWMutex
	clients  map[chan []byte]struct{}
	ring     [][]byte
	ringSize int
	ringPos  int
	ringLen  int
}

// NewEventBus creates an event bus with the given ring buffer size.
func NewEventBus(size int) *EventBus {
	return &EventBus{
		clients:  make(map[chan []byte]struct{}),
		ring:     make([][]byte, size),
		ringSize: size,
	}
}

// Publish records data and sends it to every subscriber that keeps up.
func (eb *EventBus) Publish(data []byte) {
	data = append([]byte(nil), data...)
	eb.mu.Lock()
	eb.ring[eb.ringPos] = data
	eb.ringPos = (eb.ringPos + 1) % eb.ringSize
	if eb.ringLen < eb.ringSize {
		eb.ringLen++
	}
	clients := make([]chan []byte, 0, len(eb.clients))
	for ch := range eb.clients {
		clients = append(clients, ch)
	}
	eb.mu.Unlock()

	for _, ch := range clients {
		select {
		case ch <- data:
		default:
			// slow client
		}
	}
}

// Subscribe returns a channel that receives events and an unsubscribe function.
func (eb *EventBus) Subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 64)
	eb.mu.Lock()
	eb.clients[ch] = struct{}{}
	eb.mu.Unlock()
	return ch, func() {
		eb.mu.Lock()
		delete(eb.clients, ch)
		eb.mu.Unlock()
	}
}

// Recent returns the buffered events oldest first.
func (eb *EventBus) Recent() [][]byte {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	out := make([][]byte, 0, eb.ringLen)
	start := (eb.ringPos - eb.ringLen + eb.ringSize) % eb.ringSize
	for i := 0; i < eb.ringLen; i++ {
		out = append(out, eb.ring[(start+i)%eb.ringSize])
	}
	return out
}

// handleEventStream writes each editor event as an SSE "event" message whose
// data is the raw protocol.Event JSON.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch, unsub := s.eventBus.Subscribe()
	defer unsub()
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case data := <-ch:
			fmt.Fprintf(w, "event: event\ndata: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	events := []protocol.Event{}
	for _, data := range s.eventBus.Recent() {
		var ev protocol.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"events": events})
}
