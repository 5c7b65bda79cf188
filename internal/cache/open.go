package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend names accepted by Open.
const (
	BackendRedis  = "redis"
	BackendNATS   = "nats"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Options selects and configures a cache backend.
type Options struct {
	Backend  string
	RedisURL string
	NATSURL  string
	Bucket   string
	TTLs     TTLs
}

// Open builds the configured backend. An empty backend selects memory.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Cache, error) {
	switch opts.Backend {
	case BackendRedis:
		c, err := NewRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("cache: redis", "url", opts.RedisURL)
		return c, nil
	case BackendNATS:
		bucket := opts.Bucket
		if bucket == "" {
			bucket = "contenthub"
		}
		c, err := NewNATSKV(ctx, opts.NATSURL, bucket, opts.TTLs.Max())
		if err != nil {
			return nil, err
		}
		logger.Info("cache: nats kv", "url", opts.NATSURL, "bucket", bucket, "ttl", opts.TTLs.Max())
		return c, nil
	case BackendMemory, "":
		logger.Info("cache: in-process memory")
		return NewMemory(), nil
	case BackendNone:
		logger.Info("cache: disabled")
		return Noop{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
}
