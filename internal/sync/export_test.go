package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/store/memory"
)

func TestExportJSONL_Empty(t *testing.T) {
	ms := memory.New()
	var buf bytes.Buffer
	n, err := ExportJSONL(context.Background(), ms, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 records, got %d", n)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.CollectionCount != 0 || h.ManifestCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_WithContent(t *testing.T) {
	ctx := context.Background()
	ms := memory.New()

	// Inserted out of path order to verify sorting.
	if err := ms.UpsertCollections(ctx, []*model.CollectionRecord{
		{Language: "fr", Type: model.FolderData, Filename: "skills", Content: json.RawMessage(`{"skills":["Go"]}`)},
		{Language: "en", Type: model.FolderData, Filename: "skills", Content: json.RawMessage(`{"skills":["Go"]}`)},
	}); err != nil {
		t.Fatal(err)
	}
	if err := ms.UpsertFlatFiles(ctx, model.TableStaticFiles, []*model.FlatFileRecord{
		{Filename: "robots.txt", FileType: "txt", RawText: "User-agent: *"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := ms.UpsertAssets(ctx, model.TableImages, []*model.BinaryAsset{
		{Filename: "logo.png", MimeType: "image/png", Data: []byte{1, 2, 3}, Size: 3},
	}); err != nil {
		t.Fatal(err)
	}
	if err := ms.UpsertManifest(ctx, []*model.ManifestEntry{
		{FilePath: "collections/en/data/skills.json", FileHash: "h", TableName: model.TableCollections},
	}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, ms, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 collections + 1 file + 1 asset + 1 manifest = 6 lines
	if len(lines) != 6 || n != 5 {
		t.Fatalf("expected 6 lines and 5 records, got %d and %d:\n%s", len(lines), n, buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.CollectionCount != 2 || h.FileCount != 1 || h.AssetCount != 1 || h.ManifestCount != 1 {
		t.Fatalf("header counts: %+v", h)
	}

	var first struct {
		Type string                 `json:"type"`
		Data model.CollectionRecord `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &first); err != nil {
		t.Fatalf("unmarshal line 1: %v", err)
	}
	if first.Type != "collection" || first.Data.Language != "en" {
		t.Fatalf("collections not sorted by path: %+v", first)
	}
	if string(first.Data.Content) != `{"skills":["Go"]}` {
		t.Fatalf("collection content missing from export: %s", first.Data.Content)
	}

	var file struct {
		Type string               `json:"type"`
		Data model.FlatFileRecord `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[3]), &file); err != nil {
		t.Fatalf("unmarshal line 3: %v", err)
	}
	if file.Type != "file" || file.Data.RawText != "User-agent: *" {
		t.Fatalf("unexpected file record: %+v", file)
	}

	if !strings.Contains(lines[4], `"type":"asset"`) || strings.Contains(lines[4], `"data":"AQID"`) {
		t.Fatalf("asset record should carry metadata only: %s", lines[4])
	}
	if !strings.Contains(lines[5], `"type":"manifest"`) {
		t.Fatalf("expected manifest record last: %s", lines[5])
	}
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
