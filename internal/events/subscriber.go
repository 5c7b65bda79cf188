package events

// Message is one received event.
type Message struct {
	Topic string
	Data  []byte // JSON-encoded payload
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers events matching topic (NATS wildcards allowed) on
	// the returned channel. Call the returned cancel function to unsubscribe
	// and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
