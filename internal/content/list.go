package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/blob"
	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

// FileSummary is one row of a table listing. Flat files and assets share
// the shape; Size and MimeType are set for assets only.
type FileSummary struct {
	Table       model.Table `json:"table"`
	Filename    string      `json:"filename"`
	FileType    string      `json:"file_type"`
	MimeType    string      `json:"mime_type,omitempty"`
	Size        int64       `json:"size,omitempty"`
	ContentHash string      `json:"content_hash"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ListCollections returns collection summaries matching filter, served from
// the listing cache when possible.
func (s *Service) ListCollections(ctx context.Context, filter model.CollectionFilter) ([]*model.CollectionRecord, error) {
	key := cache.CollectionListKey(filter.Language, filter.Type)
	var out []*model.CollectionRecord
	if err := cache.GetJSON(ctx, s.cache, key, &out); err == nil {
		return out, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("listing cache read failed", "key", key, "err", err)
	}

	out, err := s.store.ListCollections(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	if out == nil {
		out = []*model.CollectionRecord{}
	}
	s.storeListing(ctx, key, out)
	return out, nil
}

// ListFiles returns the listing for a flat or binary table.
func (s *Service) ListFiles(ctx context.Context, table model.Table) ([]FileSummary, error) {
	if !table.IsFlat() && !table.IsBinary() {
		return nil, fmt.Errorf("%q is not a file table", table)
	}
	key := cache.FileListKey(table)
	var out []FileSummary
	if err := cache.GetJSON(ctx, s.cache, key, &out); err == nil {
		return out, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("listing cache read failed", "key", key, "err", err)
	}

	out = []FileSummary{}
	if table.IsFlat() {
		files, err := s.store.ListFlatFiles(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		for _, f := range files {
			out = append(out, FileSummary{
				Table:       table,
				Filename:    f.Filename,
				FileType:    f.FileType,
				ContentHash: f.ContentHash,
				UpdatedAt:   f.UpdatedAt,
			})
		}
	} else {
		assets, err := s.store.ListAssets(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		for _, a := range assets {
			out = append(out, FileSummary{
				Table:       table,
				Filename:    a.Filename,
				FileType:    a.FileType,
				MimeType:    a.MimeType,
				Size:        a.Size,
				ContentHash: a.ContentHash,
				UpdatedAt:   a.UpdatedAt,
			})
		}
	}
	s.storeListing(ctx, key, out)
	return out, nil
}

func (s *Service) storeListing(ctx context.Context, key string, v any) {
	if err := cache.SetJSON(ctx, s.cache, key, v, s.ttls.List); err != nil {
		s.logger.Warn("listing cache write failed", "key", key, "err", err)
	}
}

// Asset returns an asset with its payload loaded, fetching it from the
// blob store when the row holds only a reference.
func (s *Service) Asset(ctx context.Context, table model.Table, filename string) (*model.BinaryAsset, error) {
	if !table.IsBinary() {
		return nil, fmt.Errorf("%q is not an asset table", table)
	}
	a, err := s.store.GetAsset(ctx, table, filename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Key: cache.FileKey(table, filename), Tried: []model.Tier{model.TierDatabase}}
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s/%s: %w", table, filename, err)
	}
	if len(a.Data) > 0 || a.StorageRef == "" {
		return a, nil
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("asset %s/%s is stored at %s but no blob store is configured", table, filename, a.StorageRef)
	}
	data, err := s.blobs.Get(ctx, a.StorageRef)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, &model.NotFoundError{Key: a.StorageRef, Tried: []model.Tier{model.TierDatabase}}
	}
	if err != nil {
		return nil, err
	}
	a.Data = data
	return a, nil
}

// Stats returns row counts per table.
func (s *Service) Stats(ctx context.Context) (map[string]int64, error) {
	return s.store.CountRows(ctx)
}
