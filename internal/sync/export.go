package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	CollectionCount int       `json:"collection_count"`
	FileCount       int       `json:"file_count"`
	AssetCount      int       `json:"asset_count"`
	ManifestCount   int       `json:"manifest_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes a snapshot of the store as JSONL to w: a header, then
// collections with content, flat files with content, asset metadata and
// the manifest. It returns the number of records written after the header.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) (int, error) {
	summaries, err := s.ListCollections(ctx, model.CollectionFilter{})
	if err != nil {
		return 0, fmt.Errorf("list collections: %w", err)
	}
	collections := make([]*model.CollectionRecord, 0, len(summaries))
	for _, c := range summaries {
		full, err := s.GetCollection(ctx, c.Language, c.Type, c.Filename)
		if err != nil {
			return 0, fmt.Errorf("get collection %s: %w", c.SourcePath(), err)
		}
		collections = append(collections, full)
	}
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].SourcePath() < collections[j].SourcePath()
	})

	var files []*model.FlatFileRecord
	var assets []*model.BinaryAsset
	for _, table := range model.AllTables() {
		switch {
		case table.IsFlat():
			list, err := s.ListFlatFiles(ctx, table)
			if err != nil {
				return 0, fmt.Errorf("list %s: %w", table, err)
			}
			for _, f := range list {
				full, err := s.GetFlatFile(ctx, table, f.Filename)
				if err != nil {
					return 0, fmt.Errorf("get %s/%s: %w", table, f.Filename, err)
				}
				files = append(files, full)
			}
		case table.IsBinary():
			list, err := s.ListAssets(ctx, table)
			if err != nil {
				return 0, fmt.Errorf("list %s: %w", table, err)
			}
			assets = append(assets, list...)
		}
	}

	manifest, err := s.ListManifest(ctx)
	if err != nil {
		return 0, fmt.Errorf("list manifest: %w", err)
	}
	sort.Slice(manifest, func(i, j int) bool { return manifest[i].FilePath < manifest[j].FilePath })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         "1",
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		CollectionCount: len(collections),
		FileCount:       len(files),
		AssetCount:      len(assets),
		ManifestCount:   len(manifest),
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	n := 0
	for _, c := range collections {
		if err := enc.Encode(record{Type: "collection", Data: c}); err != nil {
			return n, fmt.Errorf("encode collection %s: %w", c.SourcePath(), err)
		}
		n++
	}
	for _, f := range files {
		if err := enc.Encode(record{Type: "file", Data: f}); err != nil {
			return n, fmt.Errorf("encode file %s/%s: %w", f.Table, f.Filename, err)
		}
		n++
	}
	for _, a := range assets {
		if err := enc.Encode(record{Type: "asset", Data: a}); err != nil {
			return n, fmt.Errorf("encode asset %s/%s: %w", a.Table, a.Filename, err)
		}
		n++
	}
	for _, m := range manifest {
		if err := enc.Encode(record{Type: "manifest", Data: m}); err != nil {
			return n, fmt.Errorf("encode manifest %s: %w", m.FilePath, err)
		}
		n++
	}
	return n, nil
}
