package server

import (
	"net/http"

	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
)

// handlePump handles POST /v1/sync/pump. A pump already running anywhere
// returns 409.
func (s *Server) handlePump(w http.ResponseWriter, r *http.Request) {
	if s.sourceRoot == "" {
		writeError(w, http.StatusBadRequest, "no source root configured")
		return
	}
	report, err := s.pipeline.Pump(r.Context(), s.sourceRoot, contentsync.PumpOptions{
		ChangedOnly: queryBool(r, "changed_only"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleDiff handles GET /v1/sync/diff.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	if s.sourceRoot == "" {
		writeError(w, http.StatusBadRequest, "no source root configured")
		return
	}
	diff, err := s.pipeline.Diff(r.Context(), s.sourceRoot)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// handleClear handles POST /v1/sync/clear.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	report, err := s.pipeline.Clear(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleSyncStatus handles GET /v1/sync/status.
func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Status())
}

// handleManifest handles GET /v1/sync/manifest.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListManifest(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
}

// handleStats handles GET /v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.content.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": counts})
}
