package sync

import (
	"context"

	"github.com/kuhandran/Content-Hub-sub001/internal/blob"
)

// S3Destination writes JSONL snapshots to an S3-compatible bucket.
type S3Destination struct {
	bucket string
	key    string
	store  blob.Store
}

// NewS3Destination creates an S3 destination writing to key. A non-empty
// cfg.Endpoint enables path-style addressing (for MinIO and similar).
func NewS3Destination(ctx context.Context, cfg blob.S3Config, key string) (*S3Destination, error) {
	b, err := blob.NewS3(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &S3Destination{bucket: cfg.Bucket, key: key, store: b}, nil
}

func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write uploads data as the configured object key.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	return d.store.Put(ctx, d.key, data, "application/x-ndjson")
}
