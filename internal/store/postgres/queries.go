package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Table names are interpolated into SQL only after these checks, never from
// raw request input.
func flatTable(t model.Table) (string, error) {
	if !t.IsFlat() {
		return "", fmt.Errorf("%q is not a flat file table", t)
	}
	return pq.QuoteIdentifier(string(t)), nil
}

func assetTable(t model.Table) (string, error) {
	if !t.IsBinary() {
		return "", fmt.Errorf("%q is not an asset table", t)
	}
	return pq.QuoteIdentifier(string(t)), nil
}

func queryUpsertCollections(ctx context.Context, db executor, recs []*model.CollectionRecord) error {
	for _, c := range recs {
		_, err := db.ExecContext(ctx, `
			INSERT INTO collections (language, type, filename, content, content_hash, updated_at, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (language, type, filename) DO UPDATE SET
				content = EXCLUDED.content,
				content_hash = EXCLUDED.content_hash,
				updated_at = EXCLUDED.updated_at,
				synced_at = EXCLUDED.synced_at`,
			c.Language,
			string(c.Type),
			c.Filename,
			string(c.Content),
			c.ContentHash,
			nonZeroTime(c.UpdatedAt),
			nullTimePtr(c.SyncedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert collection %s: %w", c.SourcePath(), err)
		}
	}
	return nil
}

// queryGetCollection also matches rows stored with a legacy ".json" suffix,
// preferring the suffix-less row when both exist.
func queryGetCollection(ctx context.Context, db executor, lang string, folder model.Folder, filename string) (*model.CollectionRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+`
		FROM collections
		WHERE language = $1 AND type = $2 AND (filename = $3 OR filename = $3 || '.json')
		ORDER BY (filename = $3) DESC
		LIMIT 1`,
		lang, string(folder), filename)
	return scanCollection(row)
}

func queryListCollections(ctx context.Context, db executor, filter model.CollectionFilter) ([]*model.CollectionRecord, error) {
	var (
		whereClauses []string
		args         []any
	)
	if filter.Language != "" {
		args = append(args, filter.Language)
		whereClauses = append(whereClauses, fmt.Sprintf("language = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		whereClauses = append(whereClauses, fmt.Sprintf("type = $%d", len(args)))
	}

	q := `SELECT language, type, filename, content_hash, updated_at, synced_at FROM collections`
	if len(whereClauses) > 0 {
		q += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	q += " ORDER BY language, type, filename"

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCollectionSummaries(rows)
}

func queryDeleteCollection(ctx context.Context, db executor, lang string, folder model.Folder, filename string) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM collections
		WHERE language = $1 AND type = $2 AND (filename = $3 OR filename = $3 || '.json')`,
		lang, string(folder), filename)
	return requireAffected(res, err)
}

func queryUpsertFlatFiles(ctx context.Context, db executor, table model.Table, recs []*model.FlatFileRecord) error {
	tbl, err := flatTable(table)
	if err != nil {
		return err
	}
	for _, f := range recs {
		_, err := db.ExecContext(ctx, `
			INSERT INTO `+tbl+` (filename, file_type, content, raw_text, content_hash, updated_at, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (filename) DO UPDATE SET
				file_type = EXCLUDED.file_type,
				content = EXCLUDED.content,
				raw_text = EXCLUDED.raw_text,
				content_hash = EXCLUDED.content_hash,
				updated_at = EXCLUDED.updated_at,
				synced_at = EXCLUDED.synced_at`,
			f.Filename,
			f.FileType,
			nullString(string(f.Content)),
			nullString(f.RawText),
			f.ContentHash,
			nonZeroTime(f.UpdatedAt),
			nullTimePtr(f.SyncedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert %s/%s: %w", table, f.Filename, err)
		}
	}
	return nil
}

func queryGetFlatFile(ctx context.Context, db executor, table model.Table, filename string) (*model.FlatFileRecord, error) {
	tbl, err := flatTable(table)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT filename, file_type, content, raw_text, content_hash, updated_at, synced_at
		FROM `+tbl+` WHERE filename = $1`, filename)
	f, err := scanFlatFile(row)
	if err != nil {
		return nil, err
	}
	f.Table = table
	return f, nil
}

func queryListFlatFiles(ctx context.Context, db executor, table model.Table) ([]*model.FlatFileRecord, error) {
	tbl, err := flatTable(table)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT filename, file_type, content_hash, updated_at, synced_at
		FROM `+tbl+` ORDER BY filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFlatFileSummaries(rows, table)
}

func queryDeleteFlatFile(ctx context.Context, db executor, table model.Table, filename string) error {
	tbl, err := flatTable(table)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE filename = $1`, filename)
	return requireAffected(res, err)
}

func queryUpsertAssets(ctx context.Context, db executor, table model.Table, assets []*model.BinaryAsset) error {
	tbl, err := assetTable(table)
	if err != nil {
		return err
	}
	for _, a := range assets {
		_, err := db.ExecContext(ctx, `
			INSERT INTO `+tbl+` (filename, file_path, mime_type, file_type, size, content_hash, data, storage_ref, updated_at, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (filename) DO UPDATE SET
				file_path = EXCLUDED.file_path,
				mime_type = EXCLUDED.mime_type,
				file_type = EXCLUDED.file_type,
				size = EXCLUDED.size,
				content_hash = EXCLUDED.content_hash,
				data = EXCLUDED.data,
				storage_ref = EXCLUDED.storage_ref,
				updated_at = EXCLUDED.updated_at,
				synced_at = EXCLUDED.synced_at`,
			a.Filename,
			a.FilePath,
			a.MimeType,
			a.FileType,
			a.Size,
			a.ContentHash,
			a.Data,
			nullString(a.StorageRef),
			nonZeroTime(a.UpdatedAt),
			nullTimePtr(a.SyncedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert %s/%s: %w", table, a.Filename, err)
		}
	}
	return nil
}

func queryGetAsset(ctx context.Context, db executor, table model.Table, filename string) (*model.BinaryAsset, error) {
	tbl, err := assetTable(table)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT filename, file_path, mime_type, file_type, size, content_hash, data, storage_ref, updated_at, synced_at
		FROM `+tbl+` WHERE filename = $1`, filename)
	a, err := scanAsset(row, true)
	if err != nil {
		return nil, err
	}
	a.Table = table
	return a, nil
}

func queryListAssets(ctx context.Context, db executor, table model.Table) ([]*model.BinaryAsset, error) {
	tbl, err := assetTable(table)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT filename, file_path, mime_type, file_type, size, content_hash, storage_ref, updated_at, synced_at
		FROM `+tbl+` ORDER BY filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*model.BinaryAsset
	for rows.Next() {
		a, err := scanAsset(rows, false)
		if err != nil {
			return nil, err
		}
		a.Table = table
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

func queryListManifest(ctx context.Context, db executor) ([]*model.ManifestEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT file_path, file_hash, table_name, last_synced
		FROM sync_manifest ORDER BY file_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanManifestEntries(rows)
}

func queryUpsertManifest(ctx context.Context, db executor, entries []*model.ManifestEntry) error {
	for _, e := range entries {
		_, err := db.ExecContext(ctx, `
			INSERT INTO sync_manifest (file_path, file_hash, table_name, last_synced)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (file_path) DO UPDATE SET
				file_hash = EXCLUDED.file_hash,
				table_name = EXCLUDED.table_name,
				last_synced = EXCLUDED.last_synced`,
			e.FilePath, e.FileHash, string(e.TableName), nonZeroTime(e.LastSynced),
		)
		if err != nil {
			return fmt.Errorf("upsert manifest %s: %w", e.FilePath, err)
		}
	}
	return nil
}

func queryDeleteManifest(ctx context.Context, db executor, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, `DELETE FROM sync_manifest WHERE file_path = ANY($1)`, pq.Array(paths))
	return err
}

// clearOrder lists every table ClearAll empties.
func clearOrder() []string {
	tables := make([]string, 0, len(model.AllTables())+1)
	for _, t := range model.AllTables() {
		tables = append(tables, string(t))
	}
	return append(tables, model.ManifestTable)
}

func queryClearAll(ctx context.Context, db executor) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, t := range clearOrder() {
		res, err := db.ExecContext(ctx, `DELETE FROM `+pq.QuoteIdentifier(t))
		if err != nil {
			return nil, fmt.Errorf("clear %s: %w", t, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		counts[t] = n
	}
	return counts, nil
}

func queryCountRows(ctx context.Context, db executor) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, t := range clearOrder() {
		var n int64
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+pq.QuoteIdentifier(t)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		counts[t] = n
	}
	return counts, nil
}

// queryAcquireLock takes or extends the named lease. The conditional upsert
// only overwrites a row that has expired or is already held by owner, so
// exactly one instance wins.
func queryAcquireLock(ctx context.Context, db executor, name, owner string, ttl time.Duration) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO sync_locks (name, owner, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		ON CONFLICT (name) DO UPDATE SET
			owner = EXCLUDED.owner,
			expires_at = EXCLUDED.expires_at
		WHERE sync_locks.expires_at < NOW() OR sync_locks.owner = EXCLUDED.owner`,
		name, owner, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func queryReleaseLock(ctx context.Context, db executor, name, owner string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sync_locks WHERE name = $1 AND owner = $2`, name, owner)
	return err
}

// requireAffected converts a zero-row mutation into sql.ErrNoRows.
func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
