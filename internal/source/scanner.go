package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

// skipDirs are build and VCS directories never descended into.
var skipDirs = map[string]bool{
	".next":        true,
	"node_modules": true,
	".git":         true,
}

// allowedExt is the extension whitelist for eligible files.
var allowedExt = map[string]bool{
	"json": true, "js": true, "xml": true, "html": true, "txt": true,
	"pdf": true, "png": true, "jpg": true, "jpeg": true, "gif": true,
	"svg": true, "webp": true, "docx": true,
}

// Eligible reports whether a file name has a whitelisted extension.
func Eligible(name string) bool {
	return allowedExt[extension(name)]
}

// FileDescriptor is one eligible file found by a scan.
type FileDescriptor struct {
	AbsolutePath string      `json:"absolute_path"`
	RelativePath string      `json:"relative_path"` // slash-separated, relative to the root
	Content      []byte      `json:"-"`
	Hash         string      `json:"hash"`
	Table        model.Table `json:"table"`
	FileType     string      `json:"file_type"`
}

// Scanner walks a source root.
type Scanner struct {
	Root   string
	Logger *slog.Logger
}

// NewScanner returns a Scanner for root. A nil logger uses slog.Default.
func NewScanner(root string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{Root: root, Logger: logger}
}

// Scan walks the root and returns one descriptor per eligible file, sorted
// by relative path. Files that cannot be read are logged and skipped; only a
// missing or unreadable root fails the scan.
func (s *Scanner) Scan(ctx context.Context) ([]*FileDescriptor, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", root)
	}

	var out []*FileDescriptor
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			s.Logger.Warn("scan: skipping unreadable entry", "path", p, "err", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !Eligible(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		data, err := os.ReadFile(p)
		if err != nil {
			s.Logger.Warn("scan: skipping unreadable file", "path", rel, "err", err)
			return nil
		}
		c := Classify("/" + rel)
		out = append(out, &FileDescriptor{
			AbsolutePath: p,
			RelativePath: rel,
			Content:      data,
			Hash:         Hash(data),
			Table:        c.Table,
			FileType:     c.FileType,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out, nil
}

// ReadCollection reads {root}/collections/{lang}/{folder}/{filename}.json.
// It returns the absolute path it tried alongside any error.
func ReadCollection(root, lang string, folder model.Folder, filename string) ([]byte, string, error) {
	filename = model.NormalizeFilename(filename)
	rel := "collections/" + lang + "/" + string(folder) + "/" + filename + ".json"
	if !model.ValidKeySegment(lang) || !model.ValidKeySegment(filename) {
		return nil, filepath.Join(root, filepath.FromSlash(rel)), fmt.Errorf("invalid collection path %q", rel)
	}
	return readUnder(root, rel)
}

// ReadFlatFile reads {root}/{dir}/{filename} for a flat or binary table,
// where dir is the table's source directory.
func ReadFlatFile(root string, table model.Table, filename string) ([]byte, string, error) {
	rel := table.Dir() + "/" + filename
	if table.Dir() == "" || table == model.TableCollections || !model.ValidPath(filename) {
		return nil, filepath.Join(root, filepath.FromSlash(rel)), fmt.Errorf("invalid file path %q", rel)
	}
	return readUnder(root, rel)
}

func readUnder(root, rel string) ([]byte, string, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(root)
	if abs != cleanRoot && !strings.HasPrefix(abs, cleanRoot+string(filepath.Separator)) {
		return nil, abs, fmt.Errorf("path %q escapes source root", rel)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, abs, err
	}
	return data, abs, nil
}
