// Package memory implements store.Store in process memory. It backs
// CONTENTHUB_STORE=memory and the pipeline and server tests.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/store"
)

type collectionKey struct {
	lang     string
	folder   model.Folder
	filename string
}

type lease struct {
	owner   string
	expires time.Time
}

type state struct {
	collections map[collectionKey]*model.CollectionRecord
	flat        map[model.Table]map[string]*model.FlatFileRecord
	assets      map[model.Table]map[string]*model.BinaryAsset
	manifest    map[string]*model.ManifestEntry
}

func newState() *state {
	s := &state{
		collections: make(map[collectionKey]*model.CollectionRecord),
		flat:        make(map[model.Table]map[string]*model.FlatFileRecord),
		assets:      make(map[model.Table]map[string]*model.BinaryAsset),
		manifest:    make(map[string]*model.ManifestEntry),
	}
	for _, t := range model.AllTables() {
		switch {
		case t.IsFlat():
			s.flat[t] = make(map[string]*model.FlatFileRecord)
		case t.IsBinary():
			s.assets[t] = make(map[string]*model.BinaryAsset)
		}
	}
	return s
}

// clone copies the maps; records are replaced, never mutated, so sharing
// the pointers is safe.
func (s *state) clone() *state {
	c := &state{
		collections: make(map[collectionKey]*model.CollectionRecord, len(s.collections)),
		flat:        make(map[model.Table]map[string]*model.FlatFileRecord, len(s.flat)),
		assets:      make(map[model.Table]map[string]*model.BinaryAsset, len(s.assets)),
		manifest:    make(map[string]*model.ManifestEntry, len(s.manifest)),
	}
	for k, v := range s.collections {
		c.collections[k] = v
	}
	for t, m := range s.flat {
		cm := make(map[string]*model.FlatFileRecord, len(m))
		for k, v := range m {
			cm[k] = v
		}
		c.flat[t] = cm
	}
	for t, m := range s.assets {
		cm := make(map[string]*model.BinaryAsset, len(m))
		for k, v := range m {
			cm[k] = v
		}
		c.assets[t] = cm
	}
	for k, v := range s.manifest {
		c.manifest[k] = v
	}
	return c
}

// Store is an in-memory store.Store.
type Store struct {
	mu     sync.RWMutex
	txMu   sync.Mutex // serializes transactions
	st     *state
	locks  map[string]lease
	now    func() time.Time
	closed bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{st: newState(), locks: make(map[string]lease), now: time.Now}
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store closed")
	}
	return fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store closed")
	}
	return fn(s.st)
}

func (s *Store) UpsertCollections(ctx context.Context, recs []*model.CollectionRecord) error {
	return s.write(func(st *state) error { return upsertCollections(st, recs) })
}

func (s *Store) GetCollection(ctx context.Context, lang string, folder model.Folder, filename string) (*model.CollectionRecord, error) {
	var out *model.CollectionRecord
	err := s.read(func(st *state) error {
		var err error
		out, err = getCollection(st, lang, folder, filename)
		return err
	})
	return out, err
}

func (s *Store) ListCollections(ctx context.Context, filter model.CollectionFilter) ([]*model.CollectionRecord, error) {
	var out []*model.CollectionRecord
	err := s.read(func(st *state) error {
		out = listCollections(st, filter)
		return nil
	})
	return out, err
}

func (s *Store) DeleteCollection(ctx context.Context, lang string, folder model.Folder, filename string) error {
	return s.write(func(st *state) error { return deleteCollection(st, lang, folder, filename) })
}

func (s *Store) UpsertFlatFiles(ctx context.Context, table model.Table, recs []*model.FlatFileRecord) error {
	return s.write(func(st *state) error { return upsertFlatFiles(st, table, recs) })
}

func (s *Store) GetFlatFile(ctx context.Context, table model.Table, filename string) (*model.FlatFileRecord, error) {
	var out *model.FlatFileRecord
	err := s.read(func(st *state) error {
		var err error
		out, err = getFlatFile(st, table, filename)
		return err
	})
	return out, err
}

func (s *Store) ListFlatFiles(ctx context.Context, table model.Table) ([]*model.FlatFileRecord, error) {
	var out []*model.FlatFileRecord
	err := s.read(func(st *state) error {
		var err error
		out, err = listFlatFiles(st, table)
		return err
	})
	return out, err
}

func (s *Store) DeleteFlatFile(ctx context.Context, table model.Table, filename string) error {
	return s.write(func(st *state) error { return deleteFlatFile(st, table, filename) })
}

func (s *Store) UpsertAssets(ctx context.Context, table model.Table, assets []*model.BinaryAsset) error {
	return s.write(func(st *state) error { return upsertAssets(st, table, assets) })
}

func (s *Store) GetAsset(ctx context.Context, table model.Table, filename string) (*model.BinaryAsset, error) {
	var out *model.BinaryAsset
	err := s.read(func(st *state) error {
		var err error
		out, err = getAsset(st, table, filename)
		return err
	})
	return out, err
}

func (s *Store) ListAssets(ctx context.Context, table model.Table) ([]*model.BinaryAsset, error) {
	var out []*model.BinaryAsset
	err := s.read(func(st *state) error {
		var err error
		out, err = listAssets(st, table)
		return err
	})
	return out, err
}

func (s *Store) ListManifest(ctx context.Context) ([]*model.ManifestEntry, error) {
	var out []*model.ManifestEntry
	err := s.read(func(st *state) error {
		out = listManifest(st)
		return nil
	})
	return out, err
}

func (s *Store) UpsertManifest(ctx context.Context, entries []*model.ManifestEntry) error {
	return s.write(func(st *state) error {
		upsertManifest(st, entries)
		return nil
	})
}

func (s *Store) DeleteManifest(ctx context.Context, paths []string) error {
	return s.write(func(st *state) error {
		for _, p := range paths {
			delete(st.manifest, p)
		}
		return nil
	})
}

func (s *Store) ClearAll(ctx context.Context) (map[string]int64, error) {
	var counts map[string]int64
	err := s.write(func(st *state) error {
		counts = countRows(st)
		*st = *newState()
		return nil
	})
	return counts, err
}

func (s *Store) CountRows(ctx context.Context) (map[string]int64, error) {
	var counts map[string]int64
	err := s.read(func(st *state) error {
		counts = countRows(st)
		return nil
	})
	return counts, err
}

func (s *Store) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if l, ok := s.locks[name]; ok && l.owner != owner && now.Before(l.expires) {
		return false, nil
	}
	s.locks[name] = lease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (s *Store) ReleaseLock(ctx context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[name]; ok && l.owner == owner {
		delete(s.locks, name)
	}
	return nil
}

// RunInTransaction applies fn to a snapshot of the store and swaps it in
// only when fn succeeds. Non-transactional writes made while fn runs are
// overwritten by the commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.st.clone()
	s.mu.RUnlock()

	tx := &txStore{parent: s, st: snap}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store closed")
	}
	s.st = snap
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.read(func(*state) error { return nil })
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// txStore operates on a private snapshot; its writes become visible when the
// enclosing RunInTransaction commits.
type txStore struct {
	parent *Store
	st     *state
}

var _ store.Store = (*txStore)(nil)

func (t *txStore) UpsertCollections(ctx context.Context, recs []*model.CollectionRecord) error {
	return upsertCollections(t.st, recs)
}

func (t *txStore) GetCollection(ctx context.Context, lang string, folder model.Folder, filename string) (*model.CollectionRecord, error) {
	return getCollection(t.st, lang, folder, filename)
}

func (t *txStore) ListCollections(ctx context.Context, filter model.CollectionFilter) ([]*model.CollectionRecord, error) {
	return listCollections(t.st, filter), nil
}

func (t *txStore) DeleteCollection(ctx context.Context, lang string, folder model.Folder, filename string) error {
	return deleteCollection(t.st, lang, folder, filename)
}

func (t *txStore) UpsertFlatFiles(ctx context.Context, table model.Table, recs []*model.FlatFileRecord) error {
	return upsertFlatFiles(t.st, table, recs)
}

func (t *txStore) GetFlatFile(ctx context.Context, table model.Table, filename string) (*model.FlatFileRecord, error) {
	return getFlatFile(t.st, table, filename)
}

func (t *txStore) ListFlatFiles(ctx context.Context, table model.Table) ([]*model.FlatFileRecord, error) {
	return listFlatFiles(t.st, table)
}

func (t *txStore) DeleteFlatFile(ctx context.Context, table model.Table, filename string) error {
	return deleteFlatFile(t.st, table, filename)
}

func (t *txStore) UpsertAssets(ctx context.Context, table model.Table, assets []*model.BinaryAsset) error {
	return upsertAssets(t.st, table, assets)
}

func (t *txStore) GetAsset(ctx context.Context, table model.Table, filename string) (*model.BinaryAsset, error) {
	return getAsset(t.st, table, filename)
}

func (t *txStore) ListAssets(ctx context.Context, table model.Table) ([]*model.BinaryAsset, error) {
	return listAssets(t.st, table)
}

func (t *txStore) ListManifest(ctx context.Context) ([]*model.ManifestEntry, error) {
	return listManifest(t.st), nil
}

func (t *txStore) UpsertManifest(ctx context.Context, entries []*model.ManifestEntry) error {
	upsertManifest(t.st, entries)
	return nil
}

func (t *txStore) DeleteManifest(ctx context.Context, paths []string) error {
	for _, p := range paths {
		delete(t.st.manifest, p)
	}
	return nil
}

func (t *txStore) ClearAll(ctx context.Context) (map[string]int64, error) {
	counts := countRows(t.st)
	*t.st = *newState()
	return counts, nil
}

func (t *txStore) CountRows(ctx context.Context) (map[string]int64, error) {
	return countRows(t.st), nil
}

func (t *txStore) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return t.parent.AcquireLock(ctx, name, owner, ttl)
}

func (t *txStore) ReleaseLock(ctx context.Context, name, owner string) error {
	return t.parent.ReleaseLock(ctx, name, owner)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (t *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Close() error { return nil }

func upsertCollections(st *state, recs []*model.CollectionRecord) error {
	for _, c := range recs {
		if !c.Type.IsValid() {
			return fmt.Errorf("upsert collection %s: invalid type %q", c.SourcePath(), c.Type)
		}
		if !json.Valid(c.Content) {
			return fmt.Errorf("upsert collection %s: invalid JSON content", c.SourcePath())
		}
		cp := *c
		cp.Filename = model.NormalizeFilename(cp.Filename)
		if cp.UpdatedAt.IsZero() {
			cp.UpdatedAt = time.Now().UTC()
		}
		st.collections[collectionKey{cp.Language, cp.Type, cp.Filename}] = &cp
	}
	return nil
}

func getCollection(st *state, lang string, folder model.Folder, filename string) (*model.CollectionRecord, error) {
	c, ok := st.collections[collectionKey{lang, folder, model.NormalizeFilename(filename)}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func listCollections(st *state, filter model.CollectionFilter) []*model.CollectionRecord {
	var out []*model.CollectionRecord
	for k, c := range st.collections {
		if filter.Language != "" && k.lang != filter.Language {
			continue
		}
		if filter.Type != "" && k.folder != filter.Type {
			continue
		}
		cp := *c
		cp.Content = nil
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Language != b.Language {
			return a.Language < b.Language
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Filename < b.Filename
	})
	return out
}

func deleteCollection(st *state, lang string, folder model.Folder, filename string) error {
	k := collectionKey{lang, folder, model.NormalizeFilename(filename)}
	if _, ok := st.collections[k]; !ok {
		return sql.ErrNoRows
	}
	delete(st.collections, k)
	return nil
}

func flatRows(st *state, table model.Table) (map[string]*model.FlatFileRecord, error) {
	m, ok := st.flat[table]
	if !ok {
		return nil, fmt.Errorf("%q is not a flat file table", table)
	}
	return m, nil
}

func upsertFlatFiles(st *state, table model.Table, recs []*model.FlatFileRecord) error {
	m, err := flatRows(st, table)
	if err != nil {
		return err
	}
	for _, f := range recs {
		if len(f.Content) > 0 && !json.Valid(f.Content) {
			return fmt.Errorf("upsert %s/%s: invalid JSON content", table, f.Filename)
		}
		cp := *f
		cp.Table = table
		if cp.UpdatedAt.IsZero() {
			cp.UpdatedAt = time.Now().UTC()
		}
		m[cp.Filename] = &cp
	}
	return nil
}

func getFlatFile(st *state, table model.Table, filename string) (*model.FlatFileRecord, error) {
	m, err := flatRows(st, table)
	if err != nil {
		return nil, err
	}
	f, ok := m[filename]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *f
	return &cp, nil
}

func listFlatFiles(st *state, table model.Table) ([]*model.FlatFileRecord, error) {
	m, err := flatRows(st, table)
	if err != nil {
		return nil, err
	}
	out := make([]*model.FlatFileRecord, 0, len(m))
	for _, f := range m {
		cp := *f
		cp.Content = nil
		cp.RawText = ""
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func deleteFlatFile(st *state, table model.Table, filename string) error {
	m, err := flatRows(st, table)
	if err != nil {
		return err
	}
	if _, ok := m[filename]; !ok {
		return sql.ErrNoRows
	}
	delete(m, filename)
	return nil
}

func assetRows(st *state, table model.Table) (map[string]*model.BinaryAsset, error) {
	m, ok := st.assets[table]
	if !ok {
		return nil, fmt.Errorf("%q is not an asset table", table)
	}
	return m, nil
}

func upsertAssets(st *state, table model.Table, assets []*model.BinaryAsset) error {
	m, err := assetRows(st, table)
	if err != nil {
		return err
	}
	for _, a := range assets {
		cp := *a
		cp.Table = table
		if cp.UpdatedAt.IsZero() {
			cp.UpdatedAt = time.Now().UTC()
		}
		m[cp.Filename] = &cp
	}
	return nil
}

func getAsset(st *state, table model.Table, filename string) (*model.BinaryAsset, error) {
	m, err := assetRows(st, table)
	if err != nil {
		return nil, err
	}
	a, ok := m[filename]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func listAssets(st *state, table model.Table) ([]*model.BinaryAsset, error) {
	m, err := assetRows(st, table)
	if err != nil {
		return nil, err
	}
	out := make([]*model.BinaryAsset, 0, len(m))
	for _, a := range m {
		cp := *a
		cp.Data = nil
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func listManifest(st *state) []*model.ManifestEntry {
	out := make([]*model.ManifestEntry, 0, len(st.manifest))
	for _, e := range st.manifest {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

func upsertManifest(st *state, entries []*model.ManifestEntry) {
	for _, e := range entries {
		cp := *e
		if cp.LastSynced.IsZero() {
			cp.LastSynced = time.Now().UTC()
		}
		st.manifest[cp.FilePath] = &cp
	}
}

func countRows(st *state) map[string]int64 {
	counts := map[string]int64{
		string(model.TableCollections): int64(len(st.collections)),
		model.ManifestTable:            int64(len(st.manifest)),
	}
	for t, m := range st.flat {
		counts[string(t)] = int64(len(m))
	}
	for t, m := range st.assets {
		counts[string(t)] = int64(len(m))
	}
	return counts
}
