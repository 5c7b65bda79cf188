package resolve

import (
	"fmt"
	"path"
	"strings"

	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

// Kind identifies what a Target addresses.
type Kind string

const (
	KindCollection     Kind = "collection"
	KindCollectionMeta Kind = "collection_meta"
	KindFlatFile       Kind = "flat_file"
)

// Target names one resolvable item.
type Target struct {
	Kind     Kind
	Language string
	Folder   model.Folder
	Table    model.Table
	Filename string
}

// Collection addresses a collection record's content.
func Collection(lang string, folder model.Folder, filename string) Target {
	return Target{Kind: KindCollection, Language: strings.TrimSpace(lang), Folder: folder, Filename: model.NormalizeFilename(filename)}
}

// CollectionMeta addresses a collection record's hash and timestamp only.
func CollectionMeta(lang string, folder model.Folder, filename string) Target {
	t := Collection(lang, folder, filename)
	t.Kind = KindCollectionMeta
	return t
}

// FlatFile addresses a file in one of the flat tables.
func FlatFile(table model.Table, filename string) Target {
	return Target{Kind: KindFlatFile, Table: table, Filename: strings.TrimSpace(filename)}
}

// Key returns the cache key for the target.
func (t Target) Key() string {
	switch t.Kind {
	case KindCollectionMeta:
		return cache.CollectionMetaKey(t.Language, t.Folder, t.Filename)
	case KindFlatFile:
		return cache.FileKey(t.Table, t.Filename)
	}
	return cache.CollectionKey(t.Language, t.Folder, t.Filename)
}

// SourcePath returns the target's path relative to the source root.
func (t Target) SourcePath() string {
	if t.Kind == KindFlatFile {
		return path.Join(t.Table.Dir(), t.Filename)
	}
	return path.Join("collections", t.Language, string(t.Folder), t.Filename+".json")
}

// Validate rejects targets that cannot address stored content.
func (t Target) Validate() error {
	switch t.Kind {
	case KindCollection, KindCollectionMeta:
		if !t.Folder.IsValid() {
			return fmt.Errorf("invalid folder %q (must be config or data)", t.Folder)
		}
		if !model.ValidKeySegment(t.Language) {
			return fmt.Errorf("invalid language %q", t.Language)
		}
		if !model.ValidKeySegment(t.Filename) {
			return fmt.Errorf("invalid filename %q", t.Filename)
		}
	case KindFlatFile:
		if !t.Table.IsFlat() {
			return fmt.Errorf("%q is not a flat file table", t.Table)
		}
		if !model.ValidPath(t.Filename) {
			return fmt.Errorf("invalid filename %q", t.Filename)
		}
	default:
		return fmt.Errorf("unknown target kind %q", t.Kind)
	}
	return nil
}
