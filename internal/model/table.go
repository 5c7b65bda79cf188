package model

import "fmt"

// Table names a Content Store table. Values are the literal SQL table names.
type Table string

const (
	TableCollections Table = "collections"
	TableStaticFiles Table = "static_files"
	TableConfigFiles Table = "config_files"
	TableDataFiles   Table = "data_files"
	TableImages      Table = "images"
	TableJavascript  Table = "javascript_files"
	TableResumes     Table = "resumes"
	TableUnknown     Table = "unknown"
)

// ManifestTable is the table holding sync manifest entries.
const ManifestTable = "sync_manifest"

// String returns the string representation of the table.
func (t Table) String() string {
	return string(t)
}

// IsValid reports whether t is one of the content tables.
// TableUnknown is not a valid storage target.
func (t Table) IsValid() bool {
	switch t {
	case TableCollections, TableStaticFiles, TableConfigFiles, TableDataFiles,
		TableImages, TableJavascript, TableResumes:
		return true
	}
	return false
}

// IsFlat reports whether t stores text files keyed only by filename.
func (t Table) IsFlat() bool {
	switch t {
	case TableStaticFiles, TableConfigFiles, TableDataFiles, TableJavascript:
		return true
	}
	return false
}

// IsBinary reports whether t stores binary assets.
func (t Table) IsBinary() bool {
	return t == TableImages || t == TableResumes
}

// Dir returns the top-level source directory for flat and binary tables
// (e.g. "config" for config_files). Collections live under "collections".
func (t Table) Dir() string {
	switch t {
	case TableCollections:
		return "collections"
	case TableStaticFiles:
		return "files"
	case TableConfigFiles:
		return "config"
	case TableDataFiles:
		return "data"
	case TableImages:
		return "image"
	case TableJavascript:
		return "js"
	case TableResumes:
		return "resume"
	}
	return ""
}

// AllTables returns every content table in upsert order.
func AllTables() []Table {
	return []Table{
		TableCollections,
		TableStaticFiles,
		TableConfigFiles,
		TableDataFiles,
		TableImages,
		TableJavascript,
		TableResumes,
	}
}

// ParseTable converts s into a valid content Table.
func ParseTable(s string) (Table, error) {
	t := Table(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown table %q", s)
	}
	return t, nil
}

// Folder is the kind of a collection file.
type Folder string

const (
	FolderConfig Folder = "config"
	FolderData   Folder = "data"
)

// String returns the string representation of the folder.
func (f Folder) String() string {
	return string(f)
}

// IsValid reports whether f is config or data.
func (f Folder) IsValid() bool {
	return f == FolderConfig || f == FolderData
}

// ParseFolder converts s into a Folder, rejecting anything but config and data.
func ParseFolder(s string) (Folder, error) {
	f := Folder(s)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid folder %q (must be config or data)", s)
	}
	return f, nil
}

// Tier is one level of the read-through resolution chain.
type Tier string

const (
	TierCache      Tier = "cache"
	TierDatabase   Tier = "database"
	TierFilesystem Tier = "filesystem"
)
