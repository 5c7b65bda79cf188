package cache

import (
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

// Key namespaces. Clear flushes both.
const (
	CollectionsPrefix = "collections:"
	FilesPrefix       = "files:"
)

// anyPart stands for "all" in listing keys.
const anyPart = "*"

// CollectionKey is the content key for one collection record.
func CollectionKey(lang string, folder model.Folder, filename string) string {
	return CollectionsPrefix + lang + ":" + string(folder) + ":" + model.NormalizeFilename(filename)
}

// CollectionMetaKey is the metadata-only variant of CollectionKey.
func CollectionMetaKey(lang string, folder model.Folder, filename string) string {
	return CollectionKey(lang, folder, filename) + ":meta"
}

// CollectionListKey is the listing key for a filter; empty parts mean all.
func CollectionListKey(lang string, folder model.Folder) string {
	l, f := lang, string(folder)
	if l == "" {
		l = anyPart
	}
	if f == "" {
		f = anyPart
	}
	return CollectionsPrefix + "list:" + l + ":" + f
}

// FileKey is the content key for a flat file or asset.
func FileKey(table model.Table, filename string) string {
	return FilesPrefix + string(table) + ":" + filename
}

// FileListKey is the listing key for a table.
func FileListKey(table model.Table) string {
	return FilesPrefix + "list:" + string(table)
}

// CollectionInvalidationKeys returns every key a write to the record makes
// stale: its content and metadata keys and each listing that can include it.
func CollectionInvalidationKeys(lang string, folder model.Folder, filename string) []string {
	return []string{
		CollectionKey(lang, folder, filename),
		CollectionMetaKey(lang, folder, filename),
		CollectionListKey(lang, folder),
		CollectionListKey(lang, ""),
		CollectionListKey("", folder),
		CollectionListKey("", ""),
	}
}

// FileInvalidationKeys returns the keys a write to a flat file or asset
// makes stale.
func FileInvalidationKeys(table model.Table, filename string) []string {
	return []string{FileKey(table, filename), FileListKey(table)}
}
