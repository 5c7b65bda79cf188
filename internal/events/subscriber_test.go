package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server did not start")
	}
	return srv.ClientURL()
}

// connectPair returns a publisher and a subscriber on one embedded server.
func connectPair(t *testing.T) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("subscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return pub, sub
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no event within 2s")
	}
	return Message{}
}

// waitClosed drains ch until it is closed.
func waitClosed(t *testing.T, ch <-chan Message) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel still open after cancel")
		}
	}
}

func TestNATSSubscriber_DecodesCollectionUpdate(t *testing.T) {
	pub, sub := connectPair(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	want := CollectionUpdated{Language: "ar-ae", Type: model.FolderData, Filename: "skills", ContentHash: "h1"}
	if err := pub.Publish(context.Background(), TopicCollectionUpdated, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg := receive(t, ch)
	if msg.Topic != TopicCollectionUpdated {
		t.Errorf("topic = %q", msg.Topic)
	}
	var got CollectionUpdated
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("event = %+v, want %+v", got, want)
	}
}

func TestNATSSubscriber_FiltersBySubject(t *testing.T) {
	pub, sub := connectPair(t)
	ch, cancel, err := sub.Subscribe("contenthub.pump.*")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	_ = pub.Publish(ctx, TopicFileUpdated, FileUpdated{Table: model.TableConfigFiles, Filename: "site.json"})
	_ = pub.Publish(ctx, TopicPumpStarted, PumpStarted{RunID: "r1"})
	_ = pub.Publish(ctx, TopicContentCleared, ContentCleared{})
	_ = pub.Publish(ctx, TopicPumpCompleted, PumpCompleted{RunID: "r1"})

	for _, want := range []string{TopicPumpStarted, TopicPumpCompleted} {
		if msg := receive(t, ch); msg.Topic != want {
			t.Errorf("topic = %q, want %q", msg.Topic, want)
		}
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected event on %q", msg.Topic)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNATSSubscriber_CancelClosesChannel(t *testing.T) {
	_, sub := connectPair(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	cancel() // idempotent
	waitClosed(t, ch)
}

func TestNATSSubscriber_CancelWhilePumpEventsArrive(t *testing.T) {
	pub, sub := connectPair(t)
	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 200 {
			_ = pub.Publish(context.Background(), TopicFileUpdated, FileUpdated{Table: model.TableDataFiles, Filename: string(rune('a' + i%26))})
		}
		pub.conn.Flush()
	}()

	cancel()
	<-done
	waitClosed(t, ch)
}

func TestNATSSubscriber_AcceptsConnectionHandlers(t *testing.T) {
	url := startTestNATS(t)
	var _ Subscriber = (*NATSSubscriber)(nil)

	sub, err := NewNATSSubscriber(url,
		nats.DisconnectErrHandler(func(*nats.Conn, error) {}),
		nats.ReconnectHandler(func(*nats.Conn) {}),
	)
	if err != nil {
		t.Fatalf("subscriber: %v", err)
	}
	defer sub.Close()
	if !sub.conn.IsConnected() {
		t.Fatal("subscriber not connected")
	}
}
