package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kuhandran/Content-Hub-sub001/internal/metrics"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
)

// NewHTTPHandler returns an http.Handler with all routes registered, wrapped
// in the metrics and auth middleware.
func (s *Server) NewHTTPHandler(auth *Authenticator) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /v1/collections", s.handleListCollections)
	mux.HandleFunc("GET /v1/collections/{lang}/{folder}/{file}", s.handleGetCollection)
	mux.HandleFunc("PUT /v1/collections/{lang}/{folder}/{file}", s.handlePutCollection)
	mux.HandleFunc("DELETE /v1/collections/{lang}/{folder}/{file}", s.handleDeleteCollection)

	mux.HandleFunc("GET /v1/files/{table}", s.handleListFiles)
	mux.HandleFunc("GET /v1/files/{table}/{file...}", s.handleGetFile)
	mux.HandleFunc("PUT /v1/files/{table}/{file...}", s.handlePutFile)
	mux.HandleFunc("DELETE /v1/files/{table}/{file...}", s.handleDeleteFile)

	mux.HandleFunc("POST /v1/sync/pump", s.handlePump)
	mux.HandleFunc("GET /v1/sync/diff", s.handleDiff)
	mux.HandleFunc("POST /v1/sync/clear", s.handleClear)
	mux.HandleFunc("GET /v1/sync/status", s.handleSyncStatus)
	mux.HandleFunc("GET /v1/sync/manifest", s.handleManifest)
	mux.HandleFunc("GET /v1/stats", s.handleStats)

	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	return metrics.Middleware(auth.Middleware(mux))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	deps, ok := s.checkDeps(r.Context())
	body := map[string]any{"status": "ok", "checks": deps}
	if !ok {
		body["status"] = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	if deps["cache"] != "ok" {
		body["status"] = "degraded"
	}
	writeJSON(w, http.StatusOK, body)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// inputError indicates invalid user input in a path or query parameter.
type inputError string

func (e inputError) Error() string { return string(e) }

// notFoundBody is the 404 payload for resolution misses.
type notFoundBody struct {
	Error string       `json:"error"`
	Key   string       `json:"key"`
	Path  string       `json:"path,omitempty"`
	Tried []model.Tier `json:"tried"`
}

// validationBody is the 400 payload for rejected writes.
type validationBody struct {
	Error  string             `json:"error"`
	Fields []model.FieldError `json:"fields"`
}

// writeServiceError maps domain errors to HTTP responses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var nf *model.NotFoundError
	var ve *model.ValidationError
	var ie inputError
	switch {
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, notFoundBody{Error: "not found", Key: nf.Key, Path: nf.Path, Tried: nf.Tried})
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, validationBody{Error: ve.Error(), Fields: ve.Errors})
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.Is(err, contentsync.ErrSyncInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
