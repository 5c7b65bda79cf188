package events

import (
	"context"
	"errors"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
)

// Event topic constants
const (
	TopicCollectionUpdated = "contenthub.collection.updated"
	TopicCollectionDeleted = "contenthub.collection.deleted"
	TopicFileUpdated       = "contenthub.file.updated"
	TopicFileDeleted       = "contenthub.file.deleted"

	TopicPumpStarted   = "contenthub.pump.started"
	TopicPumpCompleted = "contenthub.pump.completed"
	TopicPumpFailed    = "contenthub.pump.failed"

	TopicContentCleared   = "contenthub.content.cleared"
	TopicSnapshotExported = "contenthub.snapshot.exported"

	// TopicAll subscribes to every event.
	TopicAll = "contenthub.>"
)

// Event types

type CollectionUpdated struct {
	Language    string       `json:"language"`
	Type        model.Folder `json:"type"`
	Filename    string       `json:"filename"`
	ContentHash string       `json:"content_hash"`
}

type CollectionDeleted struct {
	Language string       `json:"language"`
	Type     model.Folder `json:"type"`
	Filename string       `json:"filename"`
}

type FileUpdated struct {
	Table       model.Table `json:"table"`
	Filename    string      `json:"filename"`
	ContentHash string      `json:"content_hash"`
}

type FileDeleted struct {
	Table    model.Table `json:"table"`
	Filename string      `json:"filename"`
}

type PumpStarted struct {
	RunID       string `json:"run_id"`
	Root        string `json:"root"`
	ChangedOnly bool   `json:"changed_only,omitempty"`
}

// PumpCompleted carries the counts of a finished run, not the full report.
type PumpCompleted struct {
	RunID        string              `json:"run_id"`
	FilesScanned int                 `json:"files_scanned"`
	TablesLoaded map[model.Table]int `json:"tables_loaded"`
	Deleted      int                 `json:"deleted"`
	Errors       int                 `json:"errors"`
	Duration     string              `json:"duration"`
}

type PumpFailed struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

type ContentCleared struct {
	TablesCleared int              `json:"tables_cleared"`
	RowsDeleted   map[string]int64 `json:"rows_deleted"`
	CacheKeys     int              `json:"cache_keys"`
}

type SnapshotExported struct {
	Destination string    `json:"destination"`
	Records     int       `json:"records"`
	At          time.Time `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Multi publishes each event to every member. Publish attempts all members
// and returns their joined errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
