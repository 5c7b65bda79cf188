package content

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

	"github.com/kuhandran/Content-Hub-sub001/internal/blob"
	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
	"github.com/kuhandran/Content-Hub-sub001/internal/events"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/resolve"
	"github.com/kuhandran/Content-Hub-sub001/internal/store/memory"
	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
)

type brokenDeleteCache struct {
	*cache.Memory
}

func (brokenDeleteCache) Delete(context.Context, ...string) error {
	return errors.New("redis: connection reset")
}

func newTestService(t *testing.T) (*Service, *memory.Store, *cache.Memory, *events.Recorder) {
	t.Helper()
	st := memory.New()
	c := cache.NewMemory()
	rec := &events.Recorder{}
	return NewService(st, c, WithPublisher(rec)), st, c, rec
}

func TestPutCollectionInvalidatesResolvedContent(t *testing.T) {
	ctx := context.Background()
	svc, st, c, rec := newTestService(t)
	r := resolve.New(st, c, resolve.DefaultOptions(""))

	_, err := svc.PutCollection(ctx, &model.CollectionRecord{
		Language: "en", Type: model.FolderData, Filename: "skills.json",
		Content: json.RawMessage(`{"v":1}`),
	})
	require.NoError(t, err)

	res, err := r.ResolveFile(ctx, "en", model.FolderData, "skills")
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, model.TierDatabase, res.SourceTier)

	_, err = svc.PutCollection(ctx, &model.CollectionRecord{
		Language: "en", Type: model.FolderData, Filename: "skills",
		Content: json.RawMessage(`{"v":2}`),
	})
	require.NoError(t, err)

	res, err = r.ResolveFile(ctx, "en", model.FolderData, "skills")
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, model.TierDatabase, res.SourceTier, "stale cache entry survived the write")
	assert.JSONEq(t, `{"v":2}`, string(res.Content))

	assert.Equal(t, []string{events.TopicCollectionUpdated, events.TopicCollectionUpdated}, rec.Topics())
}

func TestPutCollectionNormalizes(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	out, err := svc.PutCollection(context.Background(), &model.CollectionRecord{
		Language: "ar-ae", Type: model.FolderConfig, Filename: " site.json ",
		Content: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "ar-ae", out.Language)
	assert.Equal(t, "site", out.Filename)
	assert.Len(t, out.ContentHash, 64)
	assert.False(t, out.UpdatedAt.IsZero())
}

func TestEditPumpedCollectionKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := filepath.Join(root, "collections", "ar-ae", "data", "x.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(`{"v":"old"}`), 0o644))

	svc, st, c, _ := newTestService(t)
	pipeline, err := contentsync.NewPipeline(st, contentsync.WithCache(c), contentsync.WithOwner("content-test"))
	require.NoError(t, err)
	report, err := pipeline.Pump(ctx, root, contentsync.PumpOptions{})
	require.NoError(t, err)
	require.Empty(t, report.Errors)

	r := resolve.New(st, c, resolve.DefaultOptions(root))
	res, err := r.ResolveFile(ctx, "ar-ae", model.FolderData, "x")
	require.NoError(t, err)
	assert.Equal(t, model.TierDatabase, res.SourceTier)
	r.Wait()

	_, err = svc.PutCollection(ctx, &model.CollectionRecord{
		Language: "ar-ae", Type: model.FolderData, Filename: "x",
		Content: json.RawMessage(`{"v":"new"}`),
	})
	require.NoError(t, err)

	res, err = r.ResolveFile(ctx, "ar-ae", model.FolderData, "x")
	require.NoError(t, err)
	assert.Equal(t, model.TierDatabase, res.SourceTier)
	assert.JSONEq(t, `{"v":"new"}`, string(res.Content))
	r.Wait()

	recs, err := st.ListCollections(ctx, model.CollectionFilter{Type: model.FolderData})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ar-ae", recs[0].Language)
}

func TestPutCollectionRejectsInvalid(t *testing.T) {
	svc, st, _, rec := newTestService(t)
	_, err := svc.PutCollection(context.Background(), &model.CollectionRecord{
		Language: "en", Type: "images", Filename: "x", Content: json.RawMessage(`{`),
	})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)

	counts, _ := st.CountRows(context.Background())
	assert.Zero(t, counts["collections"])
	assert.Empty(t, rec.Topics())
}

func TestDeleteCollection(t *testing.T) {
	ctx := context.Background()
	svc, _, c, rec := newTestService(t)
	_, err := svc.PutCollection(ctx, &model.CollectionRecord{
		Language: "en", Type: model.FolderData, Filename: "a", Content: json.RawMessage(`1`),
	})
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, cache.CollectionKey("en", model.FolderData, "a"), []byte(`{}`), time.Hour))

	require.NoError(t, svc.DeleteCollection(ctx, "en", model.FolderData, "a.json"))
	_, err = c.Get(ctx, cache.CollectionKey("en", model.FolderData, "a"))
	assert.ErrorIs(t, err, cache.ErrMiss)
	assert.Equal(t, events.TopicCollectionDeleted, rec.Topics()[1])

	err = svc.DeleteCollection(ctx, "en", model.FolderData, "a")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestInvalidationFailureKeepsWrite(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewService(st, brokenDeleteCache{cache.NewMemory()})

	out, err := svc.PutCollection(ctx, &model.CollectionRecord{
		Language: "en", Type: model.FolderData, Filename: "a", Content: json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, ErrInvalidation)
	require.NotNil(t, out)

	_, err = st.GetCollection(ctx, "en", model.FolderData, "a")
	assert.NoError(t, err)
}

func TestFlatFiles(t *testing.T) {
	ctx := context.Background()
	svc, _, c, rec := newTestService(t)

	_, err := svc.PutFlatFile(ctx, &model.FlatFileRecord{
		Table: model.TableStaticFiles, Filename: "robots.txt", FileType: "txt", RawText: "User-agent: *",
	})
	require.NoError(t, err)

	list, err := svc.ListFiles(ctx, model.TableStaticFiles)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "robots.txt", list[0].Filename)
	_, err = c.Get(ctx, cache.FileListKey(model.TableStaticFiles))
	require.NoError(t, err, "listing should be cached")

	_, err = svc.PutFlatFile(ctx, &model.FlatFileRecord{
		Table: model.TableStaticFiles, Filename: "sitemap.xml", FileType: "xml", RawText: "<urlset/>",
	})
	require.NoError(t, err)
	list, err = svc.ListFiles(ctx, model.TableStaticFiles)
	require.NoError(t, err)
	assert.Len(t, list, 2, "listing was not invalidated by the write")

	require.NoError(t, svc.DeleteFlatFile(ctx, model.TableStaticFiles, "robots.txt"))
	assert.ErrorIs(t, svc.DeleteFlatFile(ctx, model.TableStaticFiles, "robots.txt"), model.ErrNotFound)
	assert.Equal(t, []string{events.TopicFileUpdated, events.TopicFileUpdated, events.TopicFileDeleted}, rec.Topics())

	_, err = svc.ListFiles(ctx, model.TableCollections)
	assert.Error(t, err)
}

func TestListCollectionsCached(t *testing.T) {
	ctx := context.Background()
	svc, st, _, _ := newTestService(t)
	require.NoError(t, st.UpsertCollections(ctx, []*model.CollectionRecord{
		{Language: "en", Type: model.FolderData, Filename: "a", Content: json.RawMessage(`1`)},
		{Language: "fr", Type: model.FolderData, Filename: "a", Content: json.RawMessage(`1`)},
	}))

	list, err := svc.ListCollections(ctx, model.CollectionFilter{Language: "en"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	// A direct store write bypasses invalidation, so the cached listing wins.
	require.NoError(t, st.UpsertCollections(ctx, []*model.CollectionRecord{
		{Language: "en", Type: model.FolderConfig, Filename: "b", Content: json.RawMessage(`1`)},
	}))
	list, err = svc.ListCollections(ctx, model.CollectionFilter{Language: "en"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	all, err := svc.ListCollections(ctx, model.CollectionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAssetFromBlobStore(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	blobs := blob.NewMemory()
	svc := NewService(st, nil, WithBlobs(blobs))

	ref := blob.Key("", model.TableImages, "abcd", "logo.png")
	require.NoError(t, blobs.Put(ctx, ref, []byte{0x89, 'P', 'N', 'G'}, "image/png"))
	require.NoError(t, st.UpsertAssets(ctx, model.TableImages, []*model.BinaryAsset{
		{Filename: "logo.png", MimeType: "image/png", StorageRef: ref, Size: 4, ContentHash: "abcd"},
		{Filename: "inline.png", MimeType: "image/png", Data: []byte{1, 2}, Size: 2},
	}))

	a, err := svc.Asset(ctx, model.TableImages, "logo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, a.Data)

	a, err = svc.Asset(ctx, model.TableImages, "inline.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, a.Data)

	_, err = svc.Asset(ctx, model.TableImages, "missing.png")
	assert.ErrorIs(t, err, model.ErrNotFound)

	list, err := svc.ListFiles(ctx, model.TableImages)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
