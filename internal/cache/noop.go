package cache

import (
	"context"
	"time"
)

// Noop is a Cache that stores nothing; every Get misses.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Delete(context.Context, ...string) error { return nil }

func (Noop) DeletePrefix(context.Context, string) (int, error) { return 0, nil }

func (Noop) Ping(context.Context) error { return nil }

func (Noop) Close() error { return nil }
