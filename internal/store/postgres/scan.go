package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

// collectionColumns is the column list used for full collection reads.
const collectionColumns = `language, type, filename, content, content_hash, updated_at, synced_at`

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanCollection scans a single row into a model.CollectionRecord.
// The row must contain columns in the order defined by collectionColumns.
func scanCollection(row scannable) (*model.CollectionRecord, error) {
	var (
		c        model.CollectionRecord
		content  []byte
		syncedAt sql.NullTime
	)
	err := row.Scan(&c.Language, &c.Type, &c.Filename, &content, &c.ContentHash, &c.UpdatedAt, &syncedAt)
	if err != nil {
		return nil, err
	}
	c.Filename = model.NormalizeFilename(c.Filename)
	c.Content = json.RawMessage(content)
	c.SyncedAt = timePtr(syncedAt)
	return &c, nil
}

// scanCollectionSummaries scans listing rows, which carry no content column.
func scanCollectionSummaries(rows *sql.Rows) ([]*model.CollectionRecord, error) {
	var out []*model.CollectionRecord
	for rows.Next() {
		var (
			c        model.CollectionRecord
			syncedAt sql.NullTime
		)
		if err := rows.Scan(&c.Language, &c.Type, &c.Filename, &c.ContentHash, &c.UpdatedAt, &syncedAt); err != nil {
			return nil, err
		}
		c.Filename = model.NormalizeFilename(c.Filename)
		c.SyncedAt = timePtr(syncedAt)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanFlatFile(row scannable) (*model.FlatFileRecord, error) {
	var (
		f        model.FlatFileRecord
		content  sql.NullString
		rawText  sql.NullString
		syncedAt sql.NullTime
	)
	err := row.Scan(&f.Filename, &f.FileType, &content, &rawText, &f.ContentHash, &f.UpdatedAt, &syncedAt)
	if err != nil {
		return nil, err
	}
	if content.Valid {
		f.Content = json.RawMessage(content.String)
	}
	f.RawText = rawText.String
	f.SyncedAt = timePtr(syncedAt)
	return &f, nil
}

func scanFlatFileSummaries(rows *sql.Rows, table model.Table) ([]*model.FlatFileRecord, error) {
	var out []*model.FlatFileRecord
	for rows.Next() {
		var (
			f        = model.FlatFileRecord{Table: table}
			syncedAt sql.NullTime
		)
		if err := rows.Scan(&f.Filename, &f.FileType, &f.ContentHash, &f.UpdatedAt, &syncedAt); err != nil {
			return nil, err
		}
		f.SyncedAt = timePtr(syncedAt)
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanAsset scans an asset row. withData selects the column layout that
// includes the data column.
func scanAsset(row scannable, withData bool) (*model.BinaryAsset, error) {
	var (
		a          model.BinaryAsset
		storageRef sql.NullString
		syncedAt   sql.NullTime
	)
	dest := []any{&a.Filename, &a.FilePath, &a.MimeType, &a.FileType, &a.Size, &a.ContentHash}
	if withData {
		dest = append(dest, &a.Data)
	}
	dest = append(dest, &storageRef, &a.UpdatedAt, &syncedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	a.StorageRef = storageRef.String
	a.SyncedAt = timePtr(syncedAt)
	return &a, nil
}

func scanManifestEntries(rows *sql.Rows) ([]*model.ManifestEntry, error) {
	var out []*model.ManifestEntry
	for rows.Next() {
		var e model.ManifestEntry
		if err := rows.Scan(&e.FilePath, &e.FileHash, &e.TableName, &e.LastSynced); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr converts a sql.NullTime to a *time.Time.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nonZeroTime substitutes the current time for an unset timestamp.
func nonZeroTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
