package model

import (
	"encoding/json"
	"time"
)

// CollectionRecord is one JSON document scoped by language and folder.
// (Language, Type, Filename) is unique; Filename carries no extension.
type CollectionRecord struct {
	Language    string          `json:"language"`
	Type        Folder          `json:"type"`
	Filename    string          `json:"filename"`
	Content     json.RawMessage `json:"content,omitempty"`
	ContentHash string          `json:"content_hash"`
	UpdatedAt   time.Time       `json:"updated_at"`
	SyncedAt    *time.Time      `json:"synced_at,omitempty"`
}

// SourcePath returns the conventional path of the record relative to the
// source root.
func (c *CollectionRecord) SourcePath() string {
	return "collections/" + c.Language + "/" + string(c.Type) + "/" + c.Filename + ".json"
}

// FlatFileRecord is a text file stored in one of the flat tables
// (config_files, data_files, static_files, javascript_files).
// Filename is unique within its table and keeps its extension.
type FlatFileRecord struct {
	Table       Table           `json:"table"`
	Filename    string          `json:"filename"`
	FileType    string          `json:"file_type"`
	Content     json.RawMessage `json:"content,omitempty"`
	RawText     string          `json:"raw_text,omitempty"`
	ContentHash string          `json:"content_hash"`
	UpdatedAt   time.Time       `json:"updated_at"`
	SyncedAt    *time.Time      `json:"synced_at,omitempty"`
}

// Body returns the stored payload: the JSON content for json files and the
// raw text otherwise.
func (f *FlatFileRecord) Body() []byte {
	if len(f.Content) > 0 {
		return f.Content
	}
	return []byte(f.RawText)
}

// BinaryAsset is an image or resume. The payload is either inline (Data) or
// held in the blob store under StorageRef.
type BinaryAsset struct {
	Table       Table      `json:"table"`
	Filename    string     `json:"filename"`
	FilePath    string     `json:"file_path"`
	MimeType    string     `json:"mime_type"`
	FileType    string     `json:"file_type"`
	Size        int64      `json:"size"`
	ContentHash string     `json:"content_hash"`
	Data        []byte     `json:"-"`
	StorageRef  string     `json:"storage_ref,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// ManifestEntry records the last synced state of one source file.
type ManifestEntry struct {
	FilePath   string    `json:"file_path"`
	FileHash   string    `json:"file_hash"`
	TableName  Table     `json:"table_name"`
	LastSynced time.Time `json:"last_synced"`
}

// CollectionFilter narrows a collection listing. Empty fields match all.
type CollectionFilter struct {
	Language string
	Type     Folder
}
