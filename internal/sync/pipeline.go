package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/blob"
	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
	"github.com/kuhandran/Content-Hub-sub001/internal/events"
	"github.com/kuhandran/Content-Hub-sub001/internal/idgen"
	"github.com/kuhandran/Content-Hub-sub001/internal/metrics"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/source"
	"github.com/kuhandran/Content-Hub-sub001/internal/store"
)

// invalidateChunk caps the keys sent in one cache delete.
const invalidateChunk = 500

// PumpOptions tunes a pump run.
type PumpOptions struct {
	// ChangedOnly upserts only files whose hash differs from the manifest.
	ChangedOnly bool `json:"changed_only"`
}

// Status describes the pipeline's current and last run.
type Status struct {
	Running   bool              `json:"running"`
	RunID     string            `json:"run_id,omitempty"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	Last      *model.PumpReport `json:"last,omitempty"`
}

// Pipeline is the write path from the filesystem source to the store.
type Pipeline struct {
	store      store.Store
	cache      cache.Cache
	publisher  events.Publisher
	blobs      blob.Store
	blobPrefix string
	logger     *slog.Logger
	lockTTL    time.Duration
	owner      string
	now        func() time.Time

	lock *syncLock

	statusMu sync.RWMutex
	status   Status
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

func WithPublisher(pub events.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithBlobs uploads binary assets to b under prefix instead of storing
// them inline.
func WithBlobs(b blob.Store, prefix string) Option {
	return func(p *Pipeline) { p.blobs, p.blobPrefix = b, prefix }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithLockTTL sets the sync lease TTL.
func WithLockTTL(d time.Duration) Option {
	return func(p *Pipeline) { p.lockTTL = d }
}

// WithOwner fixes the lease owner ID instead of generating one.
func WithOwner(owner string) Option {
	return func(p *Pipeline) { p.owner = owner }
}

// NewPipeline returns a Pipeline writing to st.
func NewPipeline(st store.Store, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		store:     st,
		cache:     cache.Noop{},
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
		lockTTL:   DefaultLockTTL,
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.cache == nil {
		p.cache = cache.Noop{}
	}
	if p.lockTTL <= 0 {
		p.lockTTL = DefaultLockTTL
	}
	if p.owner == "" {
		owner, err := idgen.Owner()
		if err != nil {
			return nil, err
		}
		p.owner = owner
	}
	p.lock = &syncLock{store: st, owner: p.owner, ttl: p.lockTTL, logger: p.logger}
	return p, nil
}

// Owner returns the lease owner ID of this pipeline.
func (p *Pipeline) Owner() string { return p.owner }

// Status returns a snapshot of the pipeline state.
func (p *Pipeline) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}

// Pump scans root and loads it into the store. Per-file and per-table
// failures are collected in the report; an error is returned only when the
// run could not start (busy, unreadable root, manifest unavailable).
func (p *Pipeline) Pump(ctx context.Context, root string, opts PumpOptions) (*model.PumpReport, error) {
	release, err := p.lock.acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			metrics.RecordPumpBusy()
		}
		return nil, err
	}
	defer release()

	runID, err := idgen.RunID()
	if err != nil {
		return nil, err
	}
	start := p.now()
	report := model.NewPumpReport(runID, root, start.UTC())
	report.ChangedOnly = opts.ChangedOnly

	p.statusMu.Lock()
	p.status.Running, p.status.RunID, p.status.StartedAt = true, runID, &report.StartedAt
	p.statusMu.Unlock()
	defer func() {
		p.statusMu.Lock()
		p.status.Running, p.status.RunID, p.status.StartedAt = false, "", nil
		p.statusMu.Unlock()
	}()

	p.publish(ctx, events.TopicPumpStarted, events.PumpStarted{RunID: runID, Root: root, ChangedOnly: opts.ChangedOnly})
	p.logger.Info("pump started", "run_id", runID, "root", root, "changed_only", opts.ChangedOnly)

	if err := p.run(ctx, root, opts, report); err != nil {
		metrics.RecordPump(p.now().Sub(start), false, nil, nil)
		p.publish(ctx, events.TopicPumpFailed, events.PumpFailed{RunID: runID, Error: err.Error()})
		p.logger.Error("pump failed", "run_id", runID, "err", err)
		return nil, err
	}

	report.FinishedAt = p.now().UTC()
	elapsed := report.FinishedAt.Sub(report.StartedAt)

	perTable := make(map[string]int, len(report.TablesLoaded))
	for t, n := range report.TablesLoaded {
		perTable[string(t)] = n
	}
	kinds := make(map[string]int)
	for _, e := range report.Errors {
		kinds[string(e.Kind)]++
	}
	metrics.RecordPump(elapsed, true, perTable, kinds)

	p.statusMu.Lock()
	p.status.Last = report
	p.statusMu.Unlock()

	p.publish(ctx, events.TopicPumpCompleted, events.PumpCompleted{
		RunID:        runID,
		FilesScanned: report.FilesScanned,
		TablesLoaded: report.TablesLoaded,
		Deleted:      len(report.Deleted),
		Errors:       len(report.Errors),
		Duration:     elapsed.String(),
	})
	p.logger.Info("pump completed",
		"run_id", runID,
		"files", report.FilesScanned,
		"tables", report.TablesTouched(),
		"errors", len(report.Errors),
		"deleted", len(report.Deleted),
		"duration", elapsed)
	return report, nil
}

// batch is the upsert set for one table. keys are the cache keys the
// batch makes stale.
type batch struct {
	paths       []string
	collections []*model.CollectionRecord
	files       []*model.FlatFileRecord
	assets      []*model.BinaryAsset
	keys        []string
	index       map[string]int // unique key → position
}

func (b *batch) len() int { return len(b.paths) }

// claim reserves a slot for a unique key. A later file with the same key
// replaces the earlier one; the replaced path is returned.
func (b *batch) claim(unique, p string, keys []string) (int, string) {
	if i, ok := b.index[unique]; ok {
		prev := b.paths[i]
		b.paths[i] = p
		return i, prev
	}
	b.index[unique] = len(b.paths)
	b.paths = append(b.paths, p)
	b.keys = append(b.keys, keys...)
	return len(b.paths) - 1, ""
}

func (p *Pipeline) run(ctx context.Context, root string, opts PumpOptions, report *model.PumpReport) error {
	files, err := source.NewScanner(root, p.logger).Scan(ctx)
	if err != nil {
		return err
	}
	report.FilesScanned = len(files)

	prior, err := p.store.ListManifest(ctx)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	known := manifestHashes(prior)

	now := p.now().UTC()
	batches := make(map[model.Table]*batch)
	entries := make([]*model.ManifestEntry, 0, len(files))
	for _, fd := range files {
		entries = append(entries, &model.ManifestEntry{
			FilePath:   fd.RelativePath,
			FileHash:   fd.Hash,
			TableName:  fd.Table,
			LastSynced: now,
		})
		if fd.Table == model.TableUnknown {
			report.Skipped = append(report.Skipped, fd.RelativePath)
			continue
		}
		if h, ok := known[fd.RelativePath]; opts.ChangedOnly && ok && h == fd.Hash {
			continue
		}
		b := batches[fd.Table]
		if b == nil {
			b = &batch{index: make(map[string]int)}
			batches[fd.Table] = b
		}
		p.add(ctx, b, fd, report, now)
	}

	var stale []string
	for _, table := range model.AllTables() {
		b := batches[table]
		if b == nil || b.len() == 0 {
			continue
		}
		if err := p.upsert(ctx, table, b); err != nil {
			p.logger.Error("pump: table upsert failed", "table", table, "files", b.len(), "err", err)
			for _, rel := range b.paths {
				report.AddError(rel, table, model.ErrorStorage, err.Error())
			}
			continue
		}
		report.TablesLoaded[table] = b.len()
		stale = append(stale, b.keys...)
	}

	// Files whose write failed are recorded without a hash so the next
	// changed-only run retries them and diff shows them as modified.
	failed := make(map[string]bool)
	for _, e := range report.Errors {
		if e.Kind == model.ErrorStorage {
			failed[e.Path] = true
		}
	}
	for _, e := range entries {
		if failed[e.FilePath] {
			e.FileHash = ""
		}
	}

	if err := p.store.UpsertManifest(ctx, entries); err != nil {
		p.logger.Error("pump: manifest upsert failed", "entries", len(entries), "err", err)
		report.AddError(model.ManifestTable, "", model.ErrorStorage, err.Error())
	}

	scanned := scannedHashes(files)
	for rel := range known {
		if _, ok := scanned[rel]; !ok {
			report.Deleted = append(report.Deleted, rel)
		}
	}
	sort.Strings(report.Deleted)
	if len(report.Deleted) > 0 {
		if err := p.store.DeleteManifest(ctx, report.Deleted); err != nil {
			p.logger.Error("pump: manifest prune failed", "paths", len(report.Deleted), "err", err)
			report.AddError(model.ManifestTable, "", model.ErrorStorage, err.Error())
		}
	}

	if err := p.invalidate(ctx, stale); err != nil {
		report.AddError("", "", model.ErrorCache, err.Error())
	}
	return nil
}

// add converts one descriptor into a batch row, recording parse and skip
// errors on the report instead.
func (p *Pipeline) add(ctx context.Context, b *batch, fd *source.FileDescriptor, report *model.PumpReport, now time.Time) {
	rel, table := fd.RelativePath, fd.Table
	synced := now

	switch {
	case table == model.TableCollections:
		key, ok := source.ParseCollectionPath(rel)
		folder := model.Folder(key.Type)
		if !ok || !folder.IsValid() || !model.ValidKeySegment(key.Language) || !model.ValidKeySegment(key.Filename) {
			report.AddError(rel, table, model.ErrorSkip, "expected collections/{language}/{config|data}/{file}.json")
			report.Skipped = append(report.Skipped, rel)
			return
		}
		if err := checkJSON(fd.Content); err != nil {
			report.AddError(rel, table, model.ErrorParse, err.Error())
			return
		}
		rec := &model.CollectionRecord{
			Language:    key.Language,
			Type:        folder,
			Filename:    key.Filename,
			Content:     json.RawMessage(fd.Content),
			ContentHash: fd.Hash,
			UpdatedAt:   now,
			SyncedAt:    &synced,
		}
		i, prev := b.claim(cache.CollectionKey(rec.Language, rec.Type, rec.Filename), rel,
			cache.CollectionInvalidationKeys(rec.Language, rec.Type, rec.Filename))
		p.shadowed(report, table, prev, rel)
		if i == len(b.collections) {
			b.collections = append(b.collections, rec)
		} else {
			b.collections[i] = rec
		}

	case table.IsFlat():
		rec := &model.FlatFileRecord{
			Table:       table,
			Filename:    source.FlatFilename(rel, table),
			FileType:    fd.FileType,
			ContentHash: fd.Hash,
			UpdatedAt:   now,
			SyncedAt:    &synced,
		}
		if fd.FileType == "json" {
			if err := checkJSON(fd.Content); err != nil {
				report.AddError(rel, table, model.ErrorParse, err.Error())
				return
			}
			rec.Content = json.RawMessage(fd.Content)
		} else {
			rec.RawText = string(fd.Content)
		}
		i, prev := b.claim(rec.Filename, rel, cache.FileInvalidationKeys(table, rec.Filename))
		p.shadowed(report, table, prev, rel)
		if i == len(b.files) {
			b.files = append(b.files, rec)
		} else {
			b.files[i] = rec
		}

	case table.IsBinary():
		filename := source.FlatFilename(rel, table)
		asset := &model.BinaryAsset{
			Table:       table,
			Filename:    filename,
			FilePath:    rel,
			MimeType:    mimeType(filename),
			FileType:    fd.FileType,
			Size:        int64(len(fd.Content)),
			ContentHash: fd.Hash,
			UpdatedAt:   now,
			SyncedAt:    &synced,
		}
		if p.blobs != nil {
			ref := blob.Key(p.blobPrefix, table, fd.Hash, filename)
			if err := p.blobs.Put(ctx, ref, fd.Content, asset.MimeType); err != nil {
				report.AddError(rel, table, model.ErrorStorage, err.Error())
				return
			}
			asset.StorageRef = ref
		} else {
			asset.Data = fd.Content
		}
		i, prev := b.claim(filename, rel, cache.FileInvalidationKeys(table, filename))
		p.shadowed(report, table, prev, rel)
		if i == len(b.assets) {
			b.assets = append(b.assets, asset)
		} else {
			b.assets[i] = asset
		}
	}
}

func (p *Pipeline) shadowed(report *model.PumpReport, table model.Table, prev, by string) {
	if prev == "" {
		return
	}
	report.AddError(prev, table, model.ErrorSkip, "shadowed by "+by)
	report.Skipped = append(report.Skipped, prev)
}

func (p *Pipeline) upsert(ctx context.Context, table model.Table, b *batch) error {
	switch {
	case table == model.TableCollections:
		return p.store.UpsertCollections(ctx, b.collections)
	case table.IsFlat():
		return p.store.UpsertFlatFiles(ctx, table, b.files)
	case table.IsBinary():
		return p.store.UpsertAssets(ctx, table, b.assets)
	}
	return fmt.Errorf("table %s cannot be loaded", table)
}

// invalidate deletes keys in chunks, skipping duplicates.
func (p *Pipeline) invalidate(ctx context.Context, keys []string) error {
	seen := make(map[string]bool, len(keys))
	uniq := keys[:0:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	for start := 0; start < len(uniq); start += invalidateChunk {
		chunk := uniq[start:min(start+invalidateChunk, len(uniq))]
		err := p.cache.Delete(ctx, chunk...)
		metrics.RecordInvalidation(len(chunk), err == nil)
		if err != nil {
			p.logger.Warn("pump: cache invalidation failed", "keys", len(chunk), "err", err)
			return fmt.Errorf("invalidate %d keys: %w", len(chunk), err)
		}
	}
	return nil
}

// Diff scans root and compares it with the manifest without writing.
func (p *Pipeline) Diff(ctx context.Context, root string) (*model.DiffReport, error) {
	files, err := source.NewScanner(root, p.logger).Scan(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := p.store.ListManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return ComputeDiff(manifestHashes(entries), scannedHashes(files)), nil
}

// Clear deletes every content row and manifest entry and flushes both
// cache namespaces. It takes the sync lock so it never interleaves with a
// pump.
func (p *Pipeline) Clear(ctx context.Context) (*model.ClearReport, error) {
	release, err := p.lock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := p.store.ClearAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("clear content store: %w", err)
	}
	report := &model.ClearReport{RowsDeleted: rows}
	for t := range rows {
		if t != model.ManifestTable {
			report.TablesCleared++
		}
	}

	flushed := 0
	for _, prefix := range []string{cache.CollectionsPrefix, cache.FilesPrefix} {
		n, err := p.cache.DeletePrefix(ctx, prefix)
		if err != nil {
			p.logger.Warn("clear: cache flush failed", "prefix", prefix, "err", err)
			continue
		}
		flushed += n
	}

	p.statusMu.Lock()
	p.status.Last = nil
	p.statusMu.Unlock()

	p.publish(ctx, events.TopicContentCleared, events.ContentCleared{
		TablesCleared: report.TablesCleared,
		RowsDeleted:   rows,
		CacheKeys:     flushed,
	})
	p.logger.Info("content cleared", "tables", report.TablesCleared, "cache_keys", flushed)
	return report, nil
}

func (p *Pipeline) publish(ctx context.Context, topic string, event any) {
	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		p.logger.Warn("publish failed", "topic", topic, "err", err)
	}
}

func checkJSON(b []byte) error {
	var raw json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func mimeType(filename string) string {
	if t := mime.TypeByExtension(path.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}
