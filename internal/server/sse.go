package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/metrics"
)

const (
	// sseRingBufferSize is how many recent events a reconnecting client can
	// replay through Last-Event-ID.
	sseRingBufferSize = 1000

	sseKeepaliveInterval = 15 * time.Second
	sseClientBuffer      = 64
)

type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// Hub fans content and pump events out to /v1/events/stream clients. It is
// an events.Publisher, so runtime wiring puts it in the same events.Multi as
// the NATS publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*sseClient]struct{}
	seq     atomic.Uint64

	historyMu sync.RWMutex
	history   [sseRingBufferSize]sseEvent
	head      int // slot the next event is written to
	size      int
}

// sseClient is one open stream. An empty topics list receives everything.
type sseClient struct {
	topics []string
	ch     chan *sseEvent
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*sseClient]struct{})}
}

func (h *Hub) Publish(_ context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	h.broadcast(topic, payload)
	return nil
}

func (h *Hub) Close() error { return nil }

func (h *Hub) broadcast(topic string, payload []byte) {
	evt := &sseEvent{ID: h.seq.Add(1), Topic: topic, Data: payload}
	h.remember(*evt)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.matchesTopic(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default: // client is behind; it can catch up with Last-Event-ID
		}
	}
}

func (h *Hub) remember(evt sseEvent) {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	h.history[h.head] = evt
	h.head = (h.head + 1) % sseRingBufferSize
	h.size = min(h.size+1, sseRingBufferSize)
}

func (h *Hub) subscribe(topics []string) *sseClient {
	c := &sseClient{topics: topics, ch: make(chan *sseEvent, sseClientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// eventsSince returns remembered events newer than lastID, oldest first.
func (h *Hub) eventsSince(lastID uint64) []*sseEvent {
	h.historyMu.RLock()
	defer h.historyMu.RUnlock()

	var out []*sseEvent
	oldest := (h.head - h.size + sseRingBufferSize) % sseRingBufferSize
	for i := range h.size {
		if evt := &h.history[(oldest+i)%sseRingBufferSize]; evt.ID > lastID {
			out = append(out, evt)
		}
	}
	return out
}

func (c *sseClient) matchesTopic(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopicPattern(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern applies NATS subject rules to dot-separated topics: "*"
// matches one token and a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	for {
		pTok, pRest, pMore := strings.Cut(pattern, ".")
		tTok, tRest, tMore := strings.Cut(topic, ".")
		switch {
		case pTok == ">":
			return tTok != ""
		case pTok != "*" && pTok != tTok:
			return false
		case !pMore || !tMore:
			return pMore == tMore
		}
		pattern, topic = pRest, tRest
	}
}

// parseTopics splits the comma-separated topics query parameter.
func parseTopics(q string) []string {
	var topics []string
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// handleEventStream handles GET /v1/events/stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	client := s.hub.subscribe(parseTopics(r.URL.Query().Get("topics")))
	defer s.hub.unsubscribe(client)
	metrics.AddSSEConnections(1)
	defer metrics.AddSSEConnections(-1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A malformed Last-Event-ID is ignored and the stream starts live.
	if lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		for _, evt := range s.hub.eventsSince(lastID) {
			if client.matchesTopic(evt.Topic) {
				writeSSEEvent(w, evt)
			}
		}
		flusher.Flush()
	}

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
