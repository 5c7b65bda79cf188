// Package resolve serves content through the read-through chain
// cache → database → filesystem.
package resolve

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
	"github.com/kuhandran/Content-Hub-sub001/internal/metrics"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/source"
	"github.com/kuhandran/Content-Hub-sub001/internal/store"
)

// Result is a resolved item and the tier that served it. Metadata targets
// leave Content and Text empty.
type Result struct {
	Content     json.RawMessage `json:"content,omitempty"`
	Text        string          `json:"text,omitempty"`
	SourceTier  model.Tier      `json:"source_tier"`
	ContentHash string          `json:"content_hash"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Key         string          `json:"key"`
}

// Body returns the resolved payload.
func (r *Result) Body() []byte {
	if len(r.Content) > 0 {
		return r.Content
	}
	return []byte(r.Text)
}

// Options configures a Resolver.
type Options struct {
	// SourceRoot is the filesystem fallback root. Empty disables the
	// filesystem tier.
	SourceRoot string
	// DBTimeout bounds each database lookup. Zero means no bound beyond
	// the caller's context.
	DBTimeout time.Duration
	TTLs      cache.TTLs
	// WarmFromFilesystem writes filesystem hits into the cache.
	WarmFromFilesystem bool
	Logger             *slog.Logger
}

// DefaultOptions returns options with the default TTLs, a 5s database
// timeout and filesystem warming on.
func DefaultOptions(root string) Options {
	return Options{
		SourceRoot:         root,
		DBTimeout:          5 * time.Second,
		TTLs:               cache.DefaultTTLs(),
		WarmFromFilesystem: true,
	}
}

// Resolver implements the read-through lookup. Each tier is tried at most
// once per call, in order; a tier error is logged and treated as a miss.
type Resolver struct {
	store  store.Store
	cache  cache.Cache
	opts   Options
	logger *slog.Logger

	pending sync.WaitGroup
}

// New returns a Resolver. A nil cache disables the cache tier.
func New(st store.Store, c cache.Cache, opts Options) *Resolver {
	if c == nil {
		c = cache.Noop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: st, cache: c, opts: opts, logger: logger}
}

// ResolveFile resolves a collection record's content.
func (r *Resolver) ResolveFile(ctx context.Context, lang string, folder model.Folder, filename string) (*Result, error) {
	return r.Resolve(ctx, Collection(lang, folder, filename))
}

// Resolve walks the tiers for t. When every tier misses it returns a
// *model.NotFoundError naming the tiers tried.
func (r *Resolver) Resolve(ctx context.Context, t Target) (*Result, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	key := t.Key()
	tried := make([]model.Tier, 0, 3)

	// cache
	tried = append(tried, model.TierCache)
	if res, ok := r.fromCache(ctx, t, key); ok {
		metrics.RecordResolve(string(t.Kind), string(model.TierCache), time.Since(start))
		return res, nil
	}

	// database
	tried = append(tried, model.TierDatabase)
	if res, ok := r.fromDatabase(ctx, t, key); ok {
		r.populate(ctx, t, res)
		metrics.RecordResolve(string(t.Kind), string(model.TierDatabase), time.Since(start))
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// filesystem
	var fsPath string
	if r.opts.SourceRoot != "" {
		tried = append(tried, model.TierFilesystem)
		res, p, ok := r.fromFilesystem(t, key)
		fsPath = p
		if ok {
			if r.opts.WarmFromFilesystem {
				r.populate(ctx, t, res)
			}
			metrics.RecordResolve(string(t.Kind), string(model.TierFilesystem), time.Since(start))
			return res, nil
		}
	}

	metrics.RecordResolve(string(t.Kind), "miss", time.Since(start))
	return nil, &model.NotFoundError{Key: key, Path: fsPath, Tried: tried}
}

func (r *Resolver) fromCache(ctx context.Context, t Target, key string) (*Result, bool) {
	e, err := cache.GetEntry(ctx, r.cache, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			metrics.RecordTierError(string(model.TierCache))
			r.logger.Warn("resolve: cache read failed", "key", key, "err", err)
		}
		return nil, false
	}
	return &Result{
		Content:     e.Content,
		Text:        e.Text,
		SourceTier:  model.TierCache,
		ContentHash: e.Hash,
		UpdatedAt:   e.UpdatedAt,
		Key:         key,
	}, true
}

func (r *Resolver) fromDatabase(ctx context.Context, t Target, key string) (*Result, bool) {
	if r.opts.DBTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.DBTimeout)
		defer cancel()
	}

	res := &Result{SourceTier: model.TierDatabase, Key: key}
	var err error
	switch t.Kind {
	case KindCollection, KindCollectionMeta:
		var c *model.CollectionRecord
		c, err = r.store.GetCollection(ctx, t.Language, t.Folder, t.Filename)
		if err == nil {
			res.ContentHash, res.UpdatedAt = c.ContentHash, c.UpdatedAt
			if t.Kind == KindCollection {
				res.Content = c.Content
			}
		}
	case KindFlatFile:
		var f *model.FlatFileRecord
		f, err = r.store.GetFlatFile(ctx, t.Table, t.Filename)
		if err == nil {
			res.ContentHash, res.UpdatedAt = f.ContentHash, f.UpdatedAt
			res.Content, res.Text = f.Content, f.RawText
		}
	}
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			metrics.RecordTierError(string(model.TierDatabase))
			r.logger.Warn("resolve: database read failed", "key", key, "err", err)
		}
		return nil, false
	}
	return res, true
}

// fromFilesystem returns the absolute path it tried alongside the result.
func (r *Resolver) fromFilesystem(t Target, key string) (*Result, string, bool) {
	var (
		data []byte
		abs  string
		err  error
	)
	if t.Kind == KindFlatFile {
		data, abs, err = source.ReadFlatFile(r.opts.SourceRoot, t.Table, t.Filename)
	} else {
		data, abs, err = source.ReadCollection(r.opts.SourceRoot, t.Language, t.Folder, t.Filename)
	}
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			metrics.RecordTierError(string(model.TierFilesystem))
			r.logger.Warn("resolve: filesystem read failed", "path", abs, "err", err)
		}
		return nil, abs, false
	}

	res := &Result{SourceTier: model.TierFilesystem, ContentHash: source.Hash(data), Key: key}
	if info, err := os.Stat(abs); err == nil {
		res.UpdatedAt = info.ModTime().UTC()
	}

	isJSON := t.Kind != KindFlatFile || source.Classify("/"+t.SourcePath()).FileType == "json"
	if isJSON && !json.Valid(data) {
		metrics.RecordTierError(string(model.TierFilesystem))
		r.logger.Warn("resolve: filesystem file is not valid JSON", "path", abs)
		return nil, abs, false
	}
	switch {
	case t.Kind == KindCollectionMeta:
	case isJSON:
		res.Content = json.RawMessage(data)
	default:
		res.Text = string(data)
	}
	return res, abs, true
}

// populate writes res into the cache in the background. Failures are
// logged and never reach the caller.
//
// An admin write can land between the read that produced res and the cache
// write, and its invalidation would then be undone for a whole TTL. The
// store row is therefore read again right before the write and the entry
// is dropped when the row no longer matches res. The remaining window is
// the gap between that read and Set.
func (r *Resolver) populate(ctx context.Context, t Target, res *Result) {
	if _, ok := r.cache.(cache.Noop); ok {
		return
	}
	ttl := r.opts.TTLs.Content
	if t.Kind == KindCollectionMeta {
		ttl = r.opts.TTLs.Meta
	}
	entry := &cache.Entry{Content: res.Content, Text: res.Text, Hash: res.ContentHash, UpdatedAt: res.UpdatedAt}
	key, tier := res.Key, res.SourceTier

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if !r.stillCurrent(ctx, t, tier, entry.Hash) {
			r.logger.Debug("resolve: store changed, skipping cache populate", "key", key)
			return
		}
		if err := cache.SetEntry(ctx, r.cache, key, entry, ttl); err != nil {
			metrics.RecordTierError(string(model.TierCache))
			r.logger.Warn("resolve: cache populate failed", "key", key, "err", err)
		}
	}()
}

// stillCurrent reports whether a result served from tier with the given
// hash still reflects the store. A database result needs the row to exist
// with the same hash. A filesystem result also passes when the row is
// absent or the store is unreachable.
func (r *Resolver) stillCurrent(ctx context.Context, t Target, tier model.Tier, hash string) bool {
	if r.opts.DBTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.DBTimeout)
		defer cancel()
	}
	var (
		stored string
		err    error
	)
	if t.Kind == KindFlatFile {
		var f *model.FlatFileRecord
		if f, err = r.store.GetFlatFile(ctx, t.Table, t.Filename); err == nil {
			stored = f.ContentHash
		}
	} else {
		var c *model.CollectionRecord
		if c, err = r.store.GetCollection(ctx, t.Language, t.Folder, t.Filename); err == nil {
			stored = c.ContentHash
		}
	}

	if err == nil {
		return stored == hash
	}
	// Row gone or store unreachable.
	return tier == model.TierFilesystem
}

// Wait blocks until background cache writes have finished.
func (r *Resolver) Wait() {
	r.pending.Wait()
}

// String describes the resolver configuration for startup logs.
func (r *Resolver) String() string {
	return fmt.Sprintf("resolver(root=%q, db_timeout=%s, warm_fs=%t)", r.opts.SourceRoot, r.opts.DBTimeout, r.opts.WarmFromFilesystem)
}
