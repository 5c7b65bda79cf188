package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSKV is a Cache backed by a JetStream key-value bucket. JetStream
// applies one TTL per bucket, so the ttl passed to Set is ignored and
// entries expire after the bucket TTL given to NewNATSKV.
type NATSKV struct {
	nc     *nats.Conn
	ownsNC bool
	kv     jetstream.KeyValue
}

var _ Cache = (*NATSKV)(nil)

// NewNATSKV connects to url and binds (creating if needed) the bucket.
func NewNATSKV(ctx context.Context, url, bucket string, ttl time.Duration) (*NATSKV, error) {
	nc, err := nats.Connect(url, nats.MaxReconnects(-1), nats.ReconnectWait(time.Second))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	c, err := NewNATSKVWithConn(ctx, nc, bucket, ttl)
	if err != nil {
		nc.Close()
		return nil, err
	}
	c.ownsNC = true
	return c, nil
}

// NewNATSKVWithConn binds the bucket on an existing connection. The caller
// keeps ownership of nc.
func NewNATSKVWithConn(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration) (*NATSKV, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "contenthub read-through cache",
		TTL:         ttl,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("bind kv bucket %s: %w", bucket, err)
	}
	return &NATSKV{nc: nc, kv: kv}, nil
}

func (c *NATSKV) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := c.kv.Get(ctx, encodeKVKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return e.Value(), nil
}

func (c *NATSKV) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := c.kv.Put(ctx, encodeKVKey(key), value); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

func (c *NATSKV) Delete(ctx context.Context, keys ...string) error {
	var errs []error
	for _, k := range keys {
		if err := c.kv.Purge(ctx, encodeKVKey(k)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			errs = append(errs, fmt.Errorf("kv purge %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// DeletePrefix purges every key under prefix. The prefix must end at a key
// separator (":") so it maps to a subject wildcard.
func (c *NATSKV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if !strings.HasSuffix(prefix, ":") {
		return 0, fmt.Errorf("kv prefix %q must end with ':'", prefix)
	}
	filter := encodeKVKey(strings.TrimSuffix(prefix, ":")) + ".>"
	lister, err := c.kv.ListKeysFiltered(ctx, filter)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("kv list %s: %w", prefix, err)
	}
	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	_ = lister.Stop()

	n := 0
	for _, k := range keys {
		if err := c.kv.Purge(ctx, k); err != nil {
			return n, fmt.Errorf("kv purge %s: %w", k, err)
		}
		n++
	}
	return n, nil
}

func (c *NATSKV) Ping(ctx context.Context) error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("nats: not connected (%s)", c.nc.Status())
	}
	_, err := c.kv.Status(ctx)
	return err
}

func (c *NATSKV) Close() error {
	if c.ownsNC {
		c.nc.Close()
	}
	return nil
}

// encodeKVKey maps a cache key onto the KV key alphabet
// [-/_=.a-zA-Z0-9]: ":" becomes the token separator "." and every other
// byte outside the alphabet, including "." and "=", becomes "=XX".
func encodeKVKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		ch := key[i]
		switch {
		case ch == ':':
			b.WriteByte('.')
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '-', ch == '_', ch == '/':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "=%02X", ch)
		}
	}
	return b.String()
}
