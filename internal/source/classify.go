// Package source reads the on-disk content tree: it classifies paths into
// Content Store tables, fingerprints file bytes, and walks the source root.
package source

import (
	"path"
	"strings"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

// Classification is the storage target for one source file.
type Classification struct {
	Table    model.Table `json:"table"`
	FileType string      `json:"file_type"`
}

// classifyRule maps a path substring to a table. Rules are evaluated in
// slice order and the first match wins, so "/collections/en/config/x.json"
// lands in collections rather than config_files.
type classifyRule struct {
	marker string
	table  model.Table
}

var classifyRules = []classifyRule{
	{"/collections/", model.TableCollections},
	{"/files/", model.TableStaticFiles},
	{"/config/", model.TableConfigFiles},
	{"/data/", model.TableDataFiles},
	{"/image/", model.TableImages},
	{"/js/", model.TableJavascript},
	{"/resume/", model.TableResumes},
}

// Classify maps a slash-separated path to its table and file type.
// Paths matching no rule classify as model.TableUnknown.
func Classify(p string) Classification {
	p = strings.ReplaceAll(p, `\`, "/")
	for _, r := range classifyRules {
		if !strings.Contains(p, r.marker) {
			continue
		}
		if r.table == model.TableCollections {
			return Classification{Table: r.table, FileType: "json"}
		}
		return Classification{Table: r.table, FileType: extension(p)}
	}
	return Classification{Table: model.TableUnknown, FileType: extension(p)}
}

func extension(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// CollectionKey is the (language, type, filename) triple derived from a
// collection file's path.
type CollectionKey struct {
	Language string
	Type     string
	Filename string
}

// ParseCollectionPath derives the collection key from a path containing a
// "collections" segment. The segment after "collections" is the language
// and the next one is the type; the base name without ".json" is the
// filename. It reports false unless exactly {language}/{type}/{file}
// follows "collections", so nested files never collapse onto a shallower
// key.
func ParseCollectionPath(p string) (CollectionKey, bool) {
	segs := strings.Split(strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/"), "/")
	idx := -1
	for i, s := range segs {
		if s == "collections" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return CollectionKey{}, false
	}
	rest := segs[idx+1:]
	if len(rest) != 3 {
		return CollectionKey{}, false
	}
	return CollectionKey{
		Language: rest[0],
		Type:     rest[1],
		Filename: model.NormalizeFilename(rest[len(rest)-1]),
	}, true
}

// FlatFilename returns the name a flat or binary file is stored under: its
// path relative to the table's marker directory ("config/site/a.json" under
// config_files is "site/a.json").
func FlatFilename(p string, table model.Table) string {
	p = strings.ReplaceAll(p, `\`, "/")
	marker := "/" + table.Dir() + "/"
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if i := strings.Index(p, marker); i >= 0 {
		return p[i+len(marker):]
	}
	return path.Base(p)
}
