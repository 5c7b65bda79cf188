// Package client provides a transport-agnostic interface for the content hub
// and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"encoding/json"

	"github.com/kuhandran/Content-Hub-sub001/internal/content"
	"github.com/kuhandran/Content-Hub-sub001/internal/events"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/resolve"
	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
)

// HubClient is the interface the hub CLI commands use to reach a server.
type HubClient interface {
	// Reads
	ListCollections(ctx context.Context, filter model.CollectionFilter) ([]*model.CollectionRecord, error)
	GetCollection(ctx context.Context, req *GetRequest) (*resolve.Result, error)
	ListFiles(ctx context.Context, table model.Table) ([]content.FileSummary, error)
	GetFile(ctx context.Context, table model.Table, filename, path string) (*resolve.Result, error)

	// Admin writes
	PutCollection(ctx context.Context, lang string, folder model.Folder, filename string, doc json.RawMessage) (*WriteResponse, error)
	DeleteCollection(ctx context.Context, lang string, folder model.Folder, filename string) (*WriteResponse, error)
	PutFile(ctx context.Context, table model.Table, filename string, body []byte) (*WriteResponse, error)
	DeleteFile(ctx context.Context, table model.Table, filename string) (*WriteResponse, error)

	// Sync
	Pump(ctx context.Context, opts contentsync.PumpOptions) (*model.PumpReport, error)
	Diff(ctx context.Context) (*model.DiffReport, error)
	Clear(ctx context.Context) (*model.ClearReport, error)
	SyncStatus(ctx context.Context) (*contentsync.Status, error)
	Manifest(ctx context.Context) ([]*model.ManifestEntry, error)
	Stats(ctx context.Context) (map[string]int64, error)

	// Events
	Stream(ctx context.Context, topics []string) (<-chan events.Message, error)

	// Health
	Health(ctx context.Context) (*HealthResponse, error)

	// Lifecycle
	Close() error
}

// GetRequest addresses one collection document. Path is an optional
// JSONPath selection applied by the server.
type GetRequest struct {
	Language string
	Folder   model.Folder
	Filename string
	Meta     bool
	Path     string
}

// WriteResponse is returned by admin writes. Warning is set when the write
// committed but cache invalidation failed.
type WriteResponse struct {
	Record  json.RawMessage `json:"record,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
