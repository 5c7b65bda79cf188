package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/events"
)

func TestSSEHub_BroadcastAndReceive(t *testing.T) {
	hub := NewHub()

	client := hub.subscribe(nil) // all topics
	defer hub.unsubscribe(client)

	hub.broadcast("contenthub.collection.updated", []byte(`{"id":"en/data/skills"}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != "contenthub.collection.updated" {
			t.Fatalf("expected topic=%q, got %q", "contenthub.collection.updated", evt.Topic)
		}
		if string(evt.Data) != `{"id":"en/data/skills"}` {
			t.Fatalf("expected data=%q, got %q", `{"id":"en/data/skills"}`, string(evt.Data))
		}
		if evt.ID != 1 {
			t.Fatalf("expected id=1, got %d", evt.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSSEHub_TopicFiltering(t *testing.T) {
	hub := NewHub()

	// Client only wants collection events.
	client := hub.subscribe([]string{"contenthub.collection.*"})
	defer hub.unsubscribe(client)

	hub.broadcast("contenthub.pump.started", []byte(`{"run_id":"x"}`))
	hub.broadcast("contenthub.collection.updated", []byte(`{"id":"en/data/skills"}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != "contenthub.collection.updated" {
			t.Fatalf("expected topic=%q, got %q", "contenthub.collection.updated", evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	// Ensure no more events (pump.started should have been filtered).
	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: topic=%q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
		// Good - no extra events.
	}
}

func TestSSEHub_MultipleTopicFilters(t *testing.T) {
	hub := NewHub()

	client := hub.subscribe([]string{"contenthub.collection.*", "contenthub.pump.*"})
	defer hub.unsubscribe(client)

	hub.broadcast("contenthub.collection.updated", []byte(`{}`))
	hub.broadcast("contenthub.pump.started", []byte(`{}`))
	hub.broadcast("contenthub.content.cleared", []byte(`{}`)) // should be filtered

	received := 0
	timeout := time.After(time.Second)
	for received < 2 {
		select {
		case <-client.ch:
			received++
		case <-timeout:
			t.Fatalf("expected 2 events, got %d", received)
		}
	}

	select {
	case <-client.ch:
		t.Fatal("unexpected third event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := NewHub()

	client := hub.subscribe(nil)
	hub.unsubscribe(client)

	hub.broadcast("contenthub.collection.updated", []byte(`{}`))

	select {
	case <-client.ch:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_EventsSince(t *testing.T) {
	hub := NewHub()

	// Broadcast 5 events.
	for i := range 5 {
		hub.broadcast("contenthub.collection.updated", []byte(`{"n":`+string(rune('0'+i))+`}`))
	}

	// Get events after ID 2 (should return IDs 3, 4, 5).
	evts := hub.eventsSince(2)
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	if evts[0].ID != 3 || evts[1].ID != 4 || evts[2].ID != 5 {
		t.Fatalf("expected IDs [3,4,5], got [%d,%d,%d]", evts[0].ID, evts[1].ID, evts[2].ID)
	}
}

func TestSSEHub_EventsSince_Empty(t *testing.T) {
	hub := NewHub()
	evts := hub.eventsSince(0)
	if len(evts) != 0 {
		t.Fatalf("expected 0 events, got %d", len(evts))
	}
}

func TestSSEHub_EventsSince_AllNew(t *testing.T) {
	hub := NewHub()
	hub.broadcast("contenthub.collection.updated", []byte(`{}`))
	hub.broadcast("contenthub.collection.deleted", []byte(`{}`))

	evts := hub.eventsSince(0)
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
}

func TestSSEHub_RingBufferWrap(t *testing.T) {
	hub := NewHub()

	// Fill the ring buffer and then some to force wrap.
	for range sseRingBufferSize + 100 {
		hub.broadcast("contenthub.collection.updated", []byte(`{}`))
	}

	// The oldest event in the buffer should have ID = 101 (100 were evicted).
	evts := hub.eventsSince(0)
	if len(evts) != sseRingBufferSize {
		t.Fatalf("expected %d events, got %d", sseRingBufferSize, len(evts))
	}
	if evts[0].ID != 101 {
		t.Fatalf("expected oldest event ID=101, got %d", evts[0].ID)
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"contenthub.collection.updated", "contenthub.collection.updated", true},
		{"contenthub.collection.updated", "contenthub.collection.deleted", false},
		{"contenthub.collection.*", "contenthub.collection.updated", true},
		{"contenthub.collection.*", "contenthub.collection.deleted", true},
		{"contenthub.collection.*", "contenthub.pump.started", false},
		{"contenthub.>", "contenthub.collection.updated", true},
		{"contenthub.>", "contenthub.pump.started", true},
		{"contenthub.>", "other.topic", false},
		{"*.*.*", "contenthub.collection.updated", true},
		{"*.*.*", "contenthub.collection", false},
	} {
		t.Run(tc.pattern+"_"+tc.topic, func(t *testing.T) {
			got := matchTopicPattern(tc.pattern, tc.topic)
			if got != tc.want {
				t.Fatalf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
			}
		})
	}
}

// TestHandleEventStream_SSE tests the full HTTP SSE endpoint.
func TestHandleEventStream_SSE(t *testing.T) {
	srv, _, handler := newTestServer(t, nil)

	// Start the SSE request in a goroutine.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", "/v1/events/stream", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	// Give the handler time to register the subscription.
	time.Sleep(50 * time.Millisecond)

	// Broadcast an event.
	srv.hub.broadcast("contenthub.collection.updated", []byte(`{"id":"en/data/sse"}`))

	// Give it time to be written.
	time.Sleep(50 * time.Millisecond)

	// Cancel the context to end the stream.
	cancel()
	<-done

	// Check response headers.
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}

	// Parse the SSE output.
	body := rec.Body.String()
	if !strings.Contains(body, "event:contenthub.collection.updated") {
		t.Fatalf("expected event:contenthub.collection.updated in body, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"id":"en/data/sse"}`) {
		t.Fatalf("expected data with en/data/sse in body, got:\n%s", body)
	}
	if !strings.Contains(body, "id:") {
		t.Fatalf("expected id: field in body, got:\n%s", body)
	}
}

// TestHandleEventStream_TopicFilter tests the ?topics= query param.
func TestHandleEventStream_TopicFilter(t *testing.T) {
	srv, _, handler := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", "/v1/events/stream?topics=contenthub.pump.*", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)

	// Broadcast a collection event (should be filtered) and a pump event (should pass).
	srv.hub.broadcast("contenthub.collection.updated", []byte(`{"id":"en/data/skills"}`))
	srv.hub.broadcast("contenthub.pump.started", []byte(`{"run_id":"r1"}`))

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if strings.Contains(body, "contenthub.collection.updated") {
		t.Fatalf("expected collection event to be filtered out, got:\n%s", body)
	}
	if !strings.Contains(body, "contenthub.pump.started") {
		t.Fatalf("expected pump event in body, got:\n%s", body)
	}
}

// TestHandleEventStream_LastEventID tests reconnection with Last-Event-ID.
func TestHandleEventStream_LastEventID(t *testing.T) {
	srv, _, handler := newTestServer(t, nil)

	// Pre-broadcast 3 events before connecting.
	srv.hub.broadcast("contenthub.collection.updated", []byte(`{"n":1}`))
	srv.hub.broadcast("contenthub.collection.deleted", []byte(`{"n":2}`))
	srv.hub.broadcast("contenthub.file.updated", []byte(`{"n":3}`))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", "/v1/events/stream", nil)
	req.Header.Set("Last-Event-ID", "1") // Should replay events 2 and 3.
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	// Should contain events 2 and 3 but not event 1.
	if strings.Contains(body, `data:{"n":1}`) {
		t.Fatalf("expected event 1 to be skipped, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"n":2}`) {
		t.Fatalf("expected event 2 in body, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"n":3}`) {
		t.Fatalf("expected event 3 in body, got:\n%s", body)
	}
}

// TestHandleEventStream_AdminWrite verifies that admin writes reach SSE
// clients through the hub.
func TestHandleEventStream_AdminWrite(t *testing.T) {
	_, _, handler := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", "/v1/events/stream", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)

	put := httptest.NewRecorder()
	handler.ServeHTTP(put, httptest.NewRequest("PUT", "/v1/collections/en/data/skills", strings.NewReader(`{"skills":[]}`)))
	if put.Code != 200 {
		t.Fatalf("put failed: %d %s", put.Code, put.Body.String())
	}

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "event:"+events.TopicCollectionUpdated) {
		t.Fatalf("expected SSE event from admin write, got:\n%s", body)
	}
}

func TestHubPublish(t *testing.T) {
	hub := NewHub()
	client := hub.subscribe(nil)
	defer hub.unsubscribe(client)

	if err := hub.Publish(context.Background(), events.TopicFileDeleted, events.FileDeleted{Table: "data_files", Filename: "a.json"}); err != nil {
		t.Fatal(err)
	}
	select {
	case evt := <-client.ch:
		if string(evt.Data) != `{"table":"data_files","filename":"a.json"}` {
			t.Fatalf("unexpected payload %s", evt.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	if err := hub.Publish(context.Background(), "contenthub.bad", func() {}); err == nil {
		t.Fatal("expected marshal error")
	}
}

// TestHandleEventStream_MultipleClients verifies fan-out to multiple clients.
func TestHandleEventStream_MultipleClients(t *testing.T) {
	srv, _, handler := newTestServer(t, nil)

	startClient := func() (*httptest.ResponseRecorder, context.CancelFunc, <-chan struct{}) {
		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest("GET", "/v1/events/stream", nil)
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()
		done := make(chan struct{})
		go func() {
			defer close(done)
			handler.ServeHTTP(rec, req)
		}()
		return rec, cancel, done
	}

	rec1, cancel1, done1 := startClient()
	defer cancel1()
	rec2, cancel2, done2 := startClient()
	defer cancel2()

	time.Sleep(50 * time.Millisecond)

	srv.hub.broadcast("contenthub.collection.updated", []byte(`{"id":"en/data/multi"}`))

	time.Sleep(50 * time.Millisecond)
	cancel1()
	cancel2()
	<-done1
	<-done2

	for i, rec := range []*httptest.ResponseRecorder{rec1, rec2} {
		body := rec.Body.String()
		if !strings.Contains(body, "contenthub.collection.updated") {
			t.Fatalf("client %d: expected collection event, got:\n%s", i+1, body)
		}
	}
}

// TestSSEEventFormat verifies the exact SSE wire format.
func TestSSEEventFormat(t *testing.T) {
	srv, _, handler := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", "/v1/events/stream", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)
	srv.hub.broadcast("contenthub.collection.updated", []byte(`{"id":"en/data/fmt"}`))
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	// Parse SSE events from body.
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var id, event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "id:") {
			id = strings.TrimPrefix(line, "id:")
		} else if strings.HasPrefix(line, "event:") {
			event = strings.TrimPrefix(line, "event:")
		} else if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
		}
	}

	if id == "" {
		t.Fatal("expected non-empty id field")
	}
	if event != "contenthub.collection.updated" {
		t.Fatalf("expected event=contenthub.collection.updated, got %q", event)
	}
	if !json.Valid([]byte(data)) {
		t.Fatalf("expected valid JSON data, got %q", data)
	}
	if data != `{"id":"en/data/fmt"}` {
		t.Fatalf("expected data=%q, got %q", `{"id":"en/data/fmt"}`, data)
	}
}
