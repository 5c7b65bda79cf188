package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscriptionBuffer bounds how far a slow watcher may lag before events
// for it are dropped.
const subscriptionBuffer = 64

// NATSPublisher sends content and pump events as JSON on NATS subjects named
// after the topic constants.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("contenthub-publisher"))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	return p.conn.Publish(topic, payload)
}

// Conn is shared with the JetStream KV cache backend.
func (p *NATSPublisher) Conn() *nats.Conn {
	return p.conn
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber feeds "hub watch". It reconnects forever; callers add
// their own disconnect and reconnect handlers through opts.
type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	all := append([]nats.Option{
		nats.Name("contenthub-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}, opts...)
	nc, err := nats.Connect(url, all...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// subscription owns the delivery channel of one Subscribe call. The NATS
// callback and stop both hold mu, so nothing is sent after the close.
type subscription struct {
	mu      sync.Mutex
	out     chan Message
	stopped bool
	sub     *nats.Subscription
}

func (s *subscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.out <- Message{Topic: msg.Subject, Data: msg.Data}:
	default:
	}
}

func (s *subscription) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	close(s.out)
}

func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	w := &subscription{out: make(chan Message, subscriptionBuffer)}
	sub, err := s.conn.Subscribe(topic, w.deliver)
	if err != nil {
		w.stop()
		return nil, nil, fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()

	// Events published right after Subscribe returns must not be missed.
	if err := s.conn.Flush(); err != nil {
		w.stop()
		return nil, nil, fmt.Errorf("nats flush %s: %w", topic, err)
	}
	return w.out, w.stop, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
