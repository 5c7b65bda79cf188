package model

import "time"

// ErrorKind classifies a per-file failure collected during a pump.
type ErrorKind string

const (
	ErrorParse   ErrorKind = "parse"
	ErrorStorage ErrorKind = "storage"
	ErrorRead    ErrorKind = "read"
	ErrorCache   ErrorKind = "cache"
	ErrorSkip    ErrorKind = "skip"
)

// FileError is a failure isolated to one file (or one table batch).
type FileError struct {
	Path    string    `json:"path"`
	Table   Table     `json:"table,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// PumpReport summarizes one pump run. Errors are collected, never raised.
type PumpReport struct {
	RunID        string        `json:"run_id"`
	Root         string        `json:"root"`
	ChangedOnly  bool          `json:"changed_only,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	FilesScanned int           `json:"files_scanned"`
	TablesLoaded map[Table]int `json:"tables_loaded"`
	Skipped      []string      `json:"skipped,omitempty"`
	Deleted      []string      `json:"deleted,omitempty"`
	Errors       []FileError   `json:"errors"`
}

// NewPumpReport returns an empty report for a run.
func NewPumpReport(runID, root string, started time.Time) *PumpReport {
	return &PumpReport{
		RunID:        runID,
		Root:         root,
		StartedAt:    started,
		TablesLoaded: make(map[Table]int),
		Errors:       []FileError{},
	}
}

// AddError appends a per-file error.
func (r *PumpReport) AddError(path string, table Table, kind ErrorKind, msg string) {
	r.Errors = append(r.Errors, FileError{Path: path, Table: table, Kind: kind, Message: msg})
}

// TablesTouched returns the number of tables that received at least one row.
func (r *PumpReport) TablesTouched() int {
	n := 0
	for _, c := range r.TablesLoaded {
		if c > 0 {
			n++
		}
	}
	return n
}

// DiffReport is the result of comparing a scan against the manifest.
type DiffReport struct {
	New       []string `json:"new"`
	Modified  []string `json:"modified"`
	Deleted   []string `json:"deleted"`
	Unchanged int      `json:"unchanged"`
}

// HasChanges reports whether anything is new, modified or deleted.
func (d *DiffReport) HasChanges() bool {
	return len(d.New) > 0 || len(d.Modified) > 0 || len(d.Deleted) > 0
}

// ClearReport is the result of a full Content Store reset.
type ClearReport struct {
	TablesCleared int              `json:"tables_cleared"`
	RowsDeleted   map[string]int64 `json:"rows_deleted"`
}
