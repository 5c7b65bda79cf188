// Package content is the admin write path. Every write goes to the store
// first; the affected cache keys are then deleted and an event published.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/blob"
	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
	"github.com/kuhandran/Content-Hub-sub001/internal/events"
	"github.com/kuhandran/Content-Hub-sub001/internal/metrics"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/source"
	"github.com/kuhandran/Content-Hub-sub001/internal/store"
)

// ErrInvalidation wraps a cache failure that happened after a successful
// store write. The write stands; stale entries expire with their TTL.
var ErrInvalidation = errors.New("cache invalidation failed")

// Service coordinates store writes, cache invalidation and events.
type Service struct {
	store     store.Store
	cache     cache.Cache
	publisher events.Publisher
	blobs     blob.Store
	ttls      cache.TTLs
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithBlobs sets the store that holds asset payloads referenced by
// StorageRef.
func WithBlobs(b blob.Store) Option {
	return func(s *Service) { s.blobs = b }
}

// WithTTLs overrides the default cache TTLs.
func WithTTLs(t cache.TTLs) Option {
	return func(s *Service) { s.ttls = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a Service. A nil cache disables caching.
func NewService(st store.Store, c cache.Cache, opts ...Option) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	s := &Service{
		store:     st,
		cache:     c,
		publisher: &events.NoopPublisher{},
		ttls:      cache.DefaultTTLs(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PutCollection validates and upserts rec, then invalidates its keys. The
// hash is computed from the content when empty.
func (s *Service) PutCollection(ctx context.Context, rec *model.CollectionRecord) (*model.CollectionRecord, error) {
	if err := model.ValidateCollection(rec); err != nil {
		return nil, err
	}
	if rec.ContentHash == "" {
		rec.ContentHash = source.Hash(rec.Content)
	}
	rec.UpdatedAt = s.now().UTC()

	if err := s.store.UpsertCollections(ctx, []*model.CollectionRecord{rec}); err != nil {
		return nil, fmt.Errorf("upsert collection %s: %w", rec.SourcePath(), err)
	}

	s.publish(ctx, events.TopicCollectionUpdated, events.CollectionUpdated{
		Language:    rec.Language,
		Type:        rec.Type,
		Filename:    rec.Filename,
		ContentHash: rec.ContentHash,
	})
	return rec, s.Invalidate(ctx, cache.CollectionInvalidationKeys(rec.Language, rec.Type, rec.Filename)...)
}

// DeleteCollection removes a record. A missing record returns
// model.ErrNotFound.
func (s *Service) DeleteCollection(ctx context.Context, lang string, folder model.Folder, filename string) error {
	lang, filename = strings.TrimSpace(lang), model.NormalizeFilename(filename)
	err := s.store.DeleteCollection(ctx, lang, folder, filename)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.NotFoundError{
			Key:   cache.CollectionKey(lang, folder, filename),
			Tried: []model.Tier{model.TierDatabase},
		}
	}
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	s.publish(ctx, events.TopicCollectionDeleted, events.CollectionDeleted{
		Language: lang,
		Type:     folder,
		Filename: filename,
	})
	return s.Invalidate(ctx, cache.CollectionInvalidationKeys(lang, folder, filename)...)
}

// PutFlatFile validates and upserts rec, then invalidates its keys.
func (s *Service) PutFlatFile(ctx context.Context, rec *model.FlatFileRecord) (*model.FlatFileRecord, error) {
	if err := model.ValidateFlatFile(rec); err != nil {
		return nil, err
	}
	if rec.ContentHash == "" {
		rec.ContentHash = source.Hash(rec.Body())
	}
	rec.UpdatedAt = s.now().UTC()

	if err := s.store.UpsertFlatFiles(ctx, rec.Table, []*model.FlatFileRecord{rec}); err != nil {
		return nil, fmt.Errorf("upsert %s/%s: %w", rec.Table, rec.Filename, err)
	}

	s.publish(ctx, events.TopicFileUpdated, events.FileUpdated{
		Table:       rec.Table,
		Filename:    rec.Filename,
		ContentHash: rec.ContentHash,
	})
	return rec, s.Invalidate(ctx, cache.FileInvalidationKeys(rec.Table, rec.Filename)...)
}

// DeleteFlatFile removes a flat file. A missing file returns
// model.ErrNotFound.
func (s *Service) DeleteFlatFile(ctx context.Context, table model.Table, filename string) error {
	err := s.store.DeleteFlatFile(ctx, table, filename)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.NotFoundError{Key: cache.FileKey(table, filename), Tried: []model.Tier{model.TierDatabase}}
	}
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, filename, err)
	}

	s.publish(ctx, events.TopicFileDeleted, events.FileDeleted{Table: table, Filename: filename})
	return s.Invalidate(ctx, cache.FileInvalidationKeys(table, filename)...)
}

// Invalidate deletes keys from the cache. Failures are logged and returned
// wrapped in ErrInvalidation.
func (s *Service) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.cache.Delete(ctx, keys...)
	metrics.RecordInvalidation(len(keys), err == nil)
	if err != nil {
		s.logger.Warn("cache invalidation failed", "keys", keys, "err", err)
		return fmt.Errorf("%w: %v", ErrInvalidation, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("publish failed", "topic", topic, "err", err)
	}
}
