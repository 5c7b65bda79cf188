package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/store"
	"github.com/kuhandran/Content-Hub-sub001/internal/store/memory"
)

type failingCache struct {
	*cache.Memory
}

func (failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

type slowStore struct {
	store.Store
}

func (slowStore) GetCollection(ctx context.Context, _ string, _ model.Folder, _ string) (*model.CollectionRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type brokenStore struct {
	store.Store
}

func (brokenStore) GetCollection(context.Context, string, model.Folder, string) (*model.CollectionRecord, error) {
	return nil, errors.New("database is down")
}

// writeDuringPopulate applies write on the second GetCollection call, which
// is the re-check made by the background cache populate.
type writeDuringPopulate struct {
	store.Store
	calls int
	write func()
}

func (s *writeDuringPopulate) GetCollection(ctx context.Context, lang string, folder model.Folder, filename string) (*model.CollectionRecord, error) {
	s.calls++
	if s.calls == 2 {
		s.write()
	}
	return s.Store.GetCollection(ctx, lang, folder, filename)
}

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func seed(t *testing.T, st store.Store) {
	t.Helper()
	require.NoError(t, st.UpsertCollections(context.Background(), []*model.CollectionRecord{{
		Language:    "en",
		Type:        model.FolderData,
		Filename:    "projects",
		Content:     json.RawMessage(`{"items":[{"id":1},{"id":2}]}`),
		ContentHash: "h-db",
	}}))
}

func TestResolveDatabaseThenCache(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seed(t, st)
	c := cache.NewMemory()
	r := New(st, c, DefaultOptions(""))

	res, err := r.ResolveFile(ctx, "en", model.FolderData, "projects.json")
	require.NoError(t, err)
	assert.Equal(t, model.TierDatabase, res.SourceTier)
	assert.Equal(t, "h-db", res.ContentHash)
	assert.JSONEq(t, `{"items":[{"id":1},{"id":2}]}`, string(res.Content))
	assert.Equal(t, "collections:en:data:projects", res.Key)

	r.Wait()
	assert.Equal(t, 1, c.Len())

	res, err = r.ResolveFile(ctx, "en", model.FolderData, "projects")
	require.NoError(t, err)
	assert.Equal(t, model.TierCache, res.SourceTier)
	assert.JSONEq(t, `{"items":[{"id":1},{"id":2}]}`, string(res.Content))
}

func TestResolveMetaOmitsContent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seed(t, st)
	r := New(st, cache.NewMemory(), DefaultOptions(""))

	res, err := r.Resolve(ctx, CollectionMeta("en", model.FolderData, "projects"))
	require.NoError(t, err)
	assert.Empty(t, res.Content)
	assert.Equal(t, "h-db", res.ContentHash)
	assert.Equal(t, "collections:en:data:projects:meta", res.Key)
	r.Wait()
}

func TestResolveFilesystemFallbackWarmsCache(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "collections/fr/config/site.json", `{"title":"Bonjour"}`)
	c := cache.NewMemory()
	r := New(memory.New(), c, DefaultOptions(root))

	res, err := r.ResolveFile(ctx, "fr", model.FolderConfig, "site")
	require.NoError(t, err)
	assert.Equal(t, model.TierFilesystem, res.SourceTier)
	assert.NotEmpty(t, res.ContentHash)
	assert.False(t, res.UpdatedAt.IsZero())
	r.Wait()

	e, err := cache.GetEntry(ctx, c, "collections:fr:config:site")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Bonjour"}`, string(e.Content))
}

func TestResolveFilesystemNoWarm(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "collections/fr/config/site.json", `{}`)
	c := cache.NewMemory()
	opts := DefaultOptions(root)
	opts.WarmFromFilesystem = false
	r := New(memory.New(), c, opts)

	_, err := r.ResolveFile(ctx, "fr", model.FolderConfig, "site")
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, 0, c.Len())
}

func TestResolveFlatTextFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "files/robots.txt", "User-agent: *\n")
	r := New(memory.New(), nil, DefaultOptions(root))

	res, err := r.Resolve(ctx, FlatFile(model.TableStaticFiles, "robots.txt"))
	require.NoError(t, err)
	assert.Equal(t, "User-agent: *\n", res.Text)
	assert.Empty(t, res.Content)
	assert.Equal(t, "files:static_files:robots.txt", res.Key)
}

func TestResolveNotFound(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	r := New(memory.New(), cache.NewMemory(), DefaultOptions(root))

	_, err := r.ResolveFile(ctx, "de", model.FolderData, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)

	var nf *model.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []model.Tier{model.TierCache, model.TierDatabase, model.TierFilesystem}, nf.Tried)
	assert.Equal(t, filepath.Join(root, "collections", "de", "data", "missing.json"), nf.Path)
}

func TestResolveNotFoundWithoutSourceRoot(t *testing.T) {
	r := New(memory.New(), nil, DefaultOptions(""))
	_, err := r.ResolveFile(context.Background(), "en", model.FolderData, "missing")

	var nf *model.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []model.Tier{model.TierCache, model.TierDatabase}, nf.Tried)
	assert.Empty(t, nf.Path)
}

func TestResolveCacheErrorFallsThrough(t *testing.T) {
	st := memory.New()
	seed(t, st)
	r := New(st, failingCache{cache.NewMemory()}, DefaultOptions(""))

	res, err := r.ResolveFile(context.Background(), "en", model.FolderData, "projects")
	require.NoError(t, err)
	assert.Equal(t, model.TierDatabase, res.SourceTier)
	r.Wait()
}

func TestResolveDatabaseErrorFallsThrough(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "collections/en/data/projects.json", `{"from":"disk"}`)
	r := New(brokenStore{memory.New()}, nil, DefaultOptions(root))

	res, err := r.ResolveFile(context.Background(), "en", model.FolderData, "projects")
	require.NoError(t, err)
	assert.Equal(t, model.TierFilesystem, res.SourceTier)
}

func TestResolveDatabaseTimeout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "collections/en/data/projects.json", `{"from":"disk"}`)
	opts := DefaultOptions(root)
	opts.DBTimeout = 20 * time.Millisecond
	r := New(slowStore{memory.New()}, nil, opts)

	start := time.Now()
	res, err := r.ResolveFile(context.Background(), "en", model.FolderData, "projects")
	require.NoError(t, err)
	assert.Equal(t, model.TierFilesystem, res.SourceTier)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResolveInvalidJSONOnDisk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "collections/en/data/broken.json", `{"oops"`)
	r := New(memory.New(), nil, DefaultOptions(root))

	_, err := r.ResolveFile(context.Background(), "en", model.FolderData, "broken")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestResolveRejectsInvalidTargets(t *testing.T) {
	r := New(memory.New(), nil, DefaultOptions(""))
	for _, tgt := range []Target{
		Collection("en", "images", "x"),
		Collection("../etc", model.FolderData, "x"),
		Collection("en", model.FolderData, "a/b"),
		Collection("en", model.FolderData, "projects:meta"),
		Collection("list:en", model.FolderData, "x"),
		FlatFile(model.TableImages, "x.png"),
		FlatFile(model.TableConfigFiles, "../secret"),
	} {
		_, err := r.Resolve(context.Background(), tgt)
		assert.Error(t, err, "%+v", tgt)
		assert.NotErrorIs(t, err, model.ErrNotFound)
	}
}

func TestSelect(t *testing.T) {
	got, err := Select([]byte(`{"items":[{"id":1},{"id":2}]}`), "$.items[*].id")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(got))

	got, err = Select([]byte(`{"a":1}`), "$.nope")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(got))

	_, err = Select([]byte(`{}`), "$[")
	assert.Error(t, err)
	_, err = Select([]byte(`nope`), "$.a")
	assert.Error(t, err)
}

func TestResolvePopulateSkipsAfterConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	seed(t, mem)
	c := cache.NewMemory()
	st := &writeDuringPopulate{Store: mem}
	st.write = func() {
		require.NoError(t, mem.UpsertCollections(ctx, []*model.CollectionRecord{{
			Language:    "en",
			Type:        model.FolderData,
			Filename:    "projects",
			Content:     json.RawMessage(`{"items":[]}`),
			ContentHash: "h-new",
		}}))
		require.NoError(t, c.Delete(ctx, cache.CollectionInvalidationKeys("en", model.FolderData, "projects")...))
	}
	r := New(st, c, DefaultOptions(""))

	res, err := r.ResolveFile(ctx, "en", model.FolderData, "projects")
	require.NoError(t, err)
	assert.Equal(t, "h-db", res.ContentHash)
	r.Wait()
	assert.Equal(t, 2, st.calls)
	assert.Equal(t, 0, c.Len(), "old content must not be cached after the write")

	res, err = r.ResolveFile(ctx, "en", model.FolderData, "projects")
	require.NoError(t, err)
	assert.Equal(t, model.TierDatabase, res.SourceTier)
	assert.Equal(t, "h-new", res.ContentHash)
	r.Wait()
}
