// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) UpsertCollections(ctx context.Context, recs []*model.CollectionRecord) error {
	return queryUpsertCollections(ctx, s.db, recs)
}

func (s *PostgresStore) GetCollection(ctx context.Context, lang string, folder model.Folder, filename string) (*model.CollectionRecord, error) {
	return queryGetCollection(ctx, s.db, lang, folder, filename)
}

func (s *PostgresStore) ListCollections(ctx context.Context, filter model.CollectionFilter) ([]*model.CollectionRecord, error) {
	return queryListCollections(ctx, s.db, filter)
}

func (s *PostgresStore) DeleteCollection(ctx context.Context, lang string, folder model.Folder, filename string) error {
	return queryDeleteCollection(ctx, s.db, lang, folder, filename)
}

func (s *PostgresStore) UpsertFlatFiles(ctx context.Context, table model.Table, recs []*model.FlatFileRecord) error {
	return queryUpsertFlatFiles(ctx, s.db, table, recs)
}

func (s *PostgresStore) GetFlatFile(ctx context.Context, table model.Table, filename string) (*model.FlatFileRecord, error) {
	return queryGetFlatFile(ctx, s.db, table, filename)
}

func (s *PostgresStore) ListFlatFiles(ctx context.Context, table model.Table) ([]*model.FlatFileRecord, error) {
	return queryListFlatFiles(ctx, s.db, table)
}

func (s *PostgresStore) DeleteFlatFile(ctx context.Context, table model.Table, filename string) error {
	return queryDeleteFlatFile(ctx, s.db, table, filename)
}

func (s *PostgresStore) UpsertAssets(ctx context.Context, table model.Table, assets []*model.BinaryAsset) error {
	return queryUpsertAssets(ctx, s.db, table, assets)
}

func (s *PostgresStore) GetAsset(ctx context.Context, table model.Table, filename string) (*model.BinaryAsset, error) {
	return queryGetAsset(ctx, s.db, table, filename)
}

func (s *PostgresStore) ListAssets(ctx context.Context, table model.Table) ([]*model.BinaryAsset, error) {
	return queryListAssets(ctx, s.db, table)
}

func (s *PostgresStore) ListManifest(ctx context.Context) ([]*model.ManifestEntry, error) {
	return queryListManifest(ctx, s.db)
}

func (s *PostgresStore) UpsertManifest(ctx context.Context, entries []*model.ManifestEntry) error {
	return queryUpsertManifest(ctx, s.db, entries)
}

func (s *PostgresStore) DeleteManifest(ctx context.Context, paths []string) error {
	return queryDeleteManifest(ctx, s.db, paths)
}

// ClearAll runs the deletes in one transaction so a failed clear leaves the
// store untouched.
func (s *PostgresStore) ClearAll(ctx context.Context) (map[string]int64, error) {
	var counts map[string]int64
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		counts, err = tx.ClearAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *PostgresStore) CountRows(ctx context.Context) (map[string]int64, error) {
	return queryCountRows(ctx, s.db)
}

func (s *PostgresStore) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return queryAcquireLock(ctx, s.db, name, owner, ttl)
}

func (s *PostgresStore) ReleaseLock(ctx context.Context, name, owner string) error {
	return queryReleaseLock(ctx, s.db, name, owner)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) UpsertCollections(ctx context.Context, recs []*model.CollectionRecord) error {
	return queryUpsertCollections(ctx, s.tx, recs)
}

func (s *txStore) GetCollection(ctx context.Context, lang string, folder model.Folder, filename string) (*model.CollectionRecord, error) {
	return queryGetCollection(ctx, s.tx, lang, folder, filename)
}

func (s *txStore) ListCollections(ctx context.Context, filter model.CollectionFilter) ([]*model.CollectionRecord, error) {
	return queryListCollections(ctx, s.tx, filter)
}

func (s *txStore) DeleteCollection(ctx context.Context, lang string, folder model.Folder, filename string) error {
	return queryDeleteCollection(ctx, s.tx, lang, folder, filename)
}

func (s *txStore) UpsertFlatFiles(ctx context.Context, table model.Table, recs []*model.FlatFileRecord) error {
	return queryUpsertFlatFiles(ctx, s.tx, table, recs)
}

func (s *txStore) GetFlatFile(ctx context.Context, table model.Table, filename string) (*model.FlatFileRecord, error) {
	return queryGetFlatFile(ctx, s.tx, table, filename)
}

func (s *txStore) ListFlatFiles(ctx context.Context, table model.Table) ([]*model.FlatFileRecord, error) {
	return queryListFlatFiles(ctx, s.tx, table)
}

func (s *txStore) DeleteFlatFile(ctx context.Context, table model.Table, filename string) error {
	return queryDeleteFlatFile(ctx, s.tx, table, filename)
}

func (s *txStore) UpsertAssets(ctx context.Context, table model.Table, assets []*model.BinaryAsset) error {
	return queryUpsertAssets(ctx, s.tx, table, assets)
}

func (s *txStore) GetAsset(ctx context.Context, table model.Table, filename string) (*model.BinaryAsset, error) {
	return queryGetAsset(ctx, s.tx, table, filename)
}

func (s *txStore) ListAssets(ctx context.Context, table model.Table) ([]*model.BinaryAsset, error) {
	return queryListAssets(ctx, s.tx, table)
}

func (s *txStore) ListManifest(ctx context.Context) ([]*model.ManifestEntry, error) {
	return queryListManifest(ctx, s.tx)
}

func (s *txStore) UpsertManifest(ctx context.Context, entries []*model.ManifestEntry) error {
	return queryUpsertManifest(ctx, s.tx, entries)
}

func (s *txStore) DeleteManifest(ctx context.Context, paths []string) error {
	return queryDeleteManifest(ctx, s.tx, paths)
}

func (s *txStore) ClearAll(ctx context.Context) (map[string]int64, error) {
	return queryClearAll(ctx, s.tx)
}

func (s *txStore) CountRows(ctx context.Context) (map[string]int64, error) {
	return queryCountRows(ctx, s.tx)
}

func (s *txStore) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return queryAcquireLock(ctx, s.tx, name, owner, ttl)
}

func (s *txStore) ReleaseLock(ctx context.Context, name, owner string) error {
	return queryReleaseLock(ctx, s.tx, name, owner)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Ping is a no-op inside a transaction.
func (s *txStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
