// Package cache is the key-value cache in front of the Content Store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented key-value store with per-write TTLs. It has no
// transactions; Delete and DeletePrefix are best effort across keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix and returns the
	// number removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Entry is the envelope stored under content and metadata keys. Metadata
// keys carry an Entry with neither Content nor Text.
type Entry struct {
	Content   json.RawMessage `json:"content,omitempty"`
	Text      string          `json:"text,omitempty"`
	Hash      string          `json:"hash"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Body returns the cached payload.
func (e *Entry) Body() []byte {
	if len(e.Content) > 0 {
		return e.Content
	}
	return []byte(e.Text)
}

// GetEntry reads and decodes an envelope. A value that does not decode is
// treated as a miss.
func GetEntry(ctx context.Context, c Cache, key string) (*Entry, error) {
	b, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMiss, key, err)
	}
	return &e, nil
}

// SetEntry encodes and writes an envelope.
func SetEntry(ctx context.Context, c Cache, key string, e *Entry, ttl time.Duration) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, b, ttl)
}

// GetJSON decodes a cached JSON value into v.
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	b, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMiss, key, err)
	}
	return nil
}

// SetJSON encodes v as JSON and writes it.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, b, ttl)
}

// TTLs holds the expiry applied per key kind.
type TTLs struct {
	Content time.Duration
	Meta    time.Duration
	List    time.Duration
}

// DefaultTTLs returns one hour for content and metadata and two minutes for
// listings. A read-through populate that races an admin write between its
// store re-check and Set can keep the old entry for up to the content TTL.
func DefaultTTLs() TTLs {
	return TTLs{Content: time.Hour, Meta: time.Hour, List: 120 * time.Second}
}

// Max returns the longest of the configured TTLs.
func (t TTLs) Max() time.Duration {
	m := t.Content
	if t.Meta > m {
		m = t.Meta
	}
	if t.List > m {
		m = t.List
	}
	return m
}
