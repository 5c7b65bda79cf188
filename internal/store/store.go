package store

import (
	"context"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

// SyncLockName is the lease row guarding pump runs.
const SyncLockName = "pump"

// Store defines the persistence interface for the Content Store and the
// sync manifest. Lookups of absent rows return sql.ErrNoRows.
type Store interface {
	// Collections
	UpsertCollections(ctx context.Context, recs []*model.CollectionRecord) error
	GetCollection(ctx context.Context, lang string, folder model.Folder, filename string) (*model.CollectionRecord, error)
	ListCollections(ctx context.Context, filter model.CollectionFilter) ([]*model.CollectionRecord, error) // rows without content
	DeleteCollection(ctx context.Context, lang string, folder model.Folder, filename string) error

	// Flat files (config_files, data_files, static_files, javascript_files)
	UpsertFlatFiles(ctx context.Context, table model.Table, recs []*model.FlatFileRecord) error
	GetFlatFile(ctx context.Context, table model.Table, filename string) (*model.FlatFileRecord, error)
	ListFlatFiles(ctx context.Context, table model.Table) ([]*model.FlatFileRecord, error) // rows without content
	DeleteFlatFile(ctx context.Context, table model.Table, filename string) error

	// Binary assets (images, resumes)
	UpsertAssets(ctx context.Context, table model.Table, assets []*model.BinaryAsset) error
	GetAsset(ctx context.Context, table model.Table, filename string) (*model.BinaryAsset, error)
	ListAssets(ctx context.Context, table model.Table) ([]*model.BinaryAsset, error) // rows without data

	// Sync manifest
	ListManifest(ctx context.Context) ([]*model.ManifestEntry, error)
	UpsertManifest(ctx context.Context, entries []*model.ManifestEntry) error
	DeleteManifest(ctx context.Context, paths []string) error

	// ClearAll deletes every content row and manifest entry, returning the
	// deleted row count per table.
	ClearAll(ctx context.Context) (map[string]int64, error)
	// CountRows returns the row count per content table and the manifest.
	CountRows(ctx context.Context) (map[string]int64, error)

	// Lease lock. AcquireLock reports false when another owner holds an
	// unexpired lease; the same owner may re-acquire to extend it.
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
