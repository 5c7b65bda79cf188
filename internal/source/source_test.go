package source

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		path     string
		table    model.Table
		fileType string
	}{
		{"/collections/en/data/projects.json", model.TableCollections, "json"},
		{"/collections/en/config/site.json", model.TableCollections, "json"},
		{"/files/robots.TXT", model.TableStaticFiles, "txt"},
		{"/config/site.json", model.TableConfigFiles, "json"},
		{"/data/skills.json", model.TableDataFiles, "json"},
		{"/image/logo.png", model.TableImages, "png"},
		{"/js/app.js", model.TableJavascript, "js"},
		{"/resume/cv.pdf", model.TableResumes, "pdf"},
		{"/misc/readme.txt", model.TableUnknown, "txt"},
		{"/files/config/x.json", model.TableStaticFiles, "json"},
		{`\data\win.json`, model.TableDataFiles, "json"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			got := Classify(tc.path)
			if got.Table != tc.table || got.FileType != tc.fileType {
				t.Errorf("Classify(%q) = %+v, want {%s %s}", tc.path, got, tc.table, tc.fileType)
			}
			if again := Classify(tc.path); again != got {
				t.Errorf("Classify is not deterministic: %+v vs %+v", got, again)
			}
		})
	}
}

func TestParseCollectionPath(t *testing.T) {
	k, ok := ParseCollectionPath("collections/ar-AE/data/projects.json")
	if !ok {
		t.Fatal("expected a collection key")
	}
	if k.Language != "ar-AE" || k.Type != "data" || k.Filename != "projects" {
		t.Errorf("unexpected key %+v", k)
	}
	if _, ok := ParseCollectionPath("collections/en/projects.json"); ok {
		t.Error("path with one directory segment should not parse")
	}
	if _, ok := ParseCollectionPath("collections/en/data/sub/projects.json"); ok {
		t.Error("nested path should not parse")
	}
	if _, ok := ParseCollectionPath("config/site.json"); ok {
		t.Error("path without collections segment should not parse")
	}
}

func TestFlatFilename(t *testing.T) {
	if got := FlatFilename("config/site/a.json", model.TableConfigFiles); got != "site/a.json" {
		t.Errorf("got %q", got)
	}
	if got := FlatFilename("/image/logo.png", model.TableImages); got != "logo.png" {
		t.Errorf("got %q", got)
	}
}

func TestHash(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Hash([]byte("abc")); got != want {
		t.Errorf("Hash(abc) = %s", got)
	}
	if Hash([]byte(`{"a":1}`)) == Hash([]byte(`{"a": 1}`)) {
		t.Error("formatting differences must change the hash")
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"collections/en/data/projects.json": `{"p":1}`,
		"config/site.json":                  `{}`,
		"js/app.js":                         "x()",
		"node_modules/dep/index.js":         "skip",
		".git/HEAD.txt":                     "skip",
		".next/cache.json":                  "{}",
		"image/logo.bmp":                    "not whitelisted",
		"notes.md":                          "not whitelisted",
	})

	files, err := NewScanner(root, slog.Default()).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelativePath)
	}
	want := []string{"collections/en/data/projects.json", "config/site.json", "js/app.js"}
	if len(rels) != len(want) {
		t.Fatalf("got %v, want %v", rels, want)
	}
	for i := range want {
		if rels[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, rels[i], want[i])
		}
	}
	if files[0].Table != model.TableCollections || files[0].Hash != Hash([]byte(`{"p":1}`)) {
		t.Errorf("unexpected descriptor %+v", files[0])
	}
	if files[2].Table != model.TableJavascript || files[2].FileType != "js" {
		t.Errorf("unexpected descriptor %+v", files[2])
	}
}

func TestScanSkipsUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"data/ok.json":     `{}`,
		"data/locked.json": `{}`,
	})
	locked := filepath.Join(root, "data", "locked.json")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o644) })

	files, err := NewScanner(root, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || files[0].RelativePath != "data/ok.json" {
		t.Fatalf("expected only data/ok.json, got %d files", len(files))
	}
}

func TestScanMissingRoot(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "absent"), nil).Scan(context.Background())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestReadCollectionAndFlatFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"collections/en/data/skills.json": `{"s":[]}`,
		"js/app.js":                       "run()",
	})

	data, _, err := ReadCollection(root, "en", model.FolderData, "skills.json")
	if err != nil || string(data) != `{"s":[]}` {
		t.Fatalf("ReadCollection = %q, %v", data, err)
	}
	if _, path, err := ReadCollection(root, "en", model.FolderData, "missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist for %s, got %v", path, err)
	}
	if _, _, err := ReadCollection(root, "..", model.FolderData, "skills"); err == nil {
		t.Error("expected traversal rejection")
	}

	data, _, err = ReadFlatFile(root, model.TableJavascript, "app.js")
	if err != nil || string(data) != "run()" {
		t.Fatalf("ReadFlatFile = %q, %v", data, err)
	}
	if _, _, err := ReadFlatFile(root, model.TableJavascript, "../collections/en/data/skills.json"); err == nil {
		t.Error("expected traversal rejection")
	}
}
