package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/kuhandran/Content-Hub-sub001/internal/content"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/resolve"
)

// maxBodyBytes caps admin write payloads.
const maxBodyBytes = 10 << 20

// writeResponse is returned by PUT and DELETE. Warning is set when the
// write succeeded but cache invalidation did not.
type writeResponse struct {
	Record  any    `json:"record,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, inputError("read body: " + err.Error())
	}
	return body, nil
}

// handleListCollections handles GET /v1/collections.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.CollectionFilter{Language: q.Get("language")}
	if t := q.Get("type"); t != "" {
		folder, err := model.ParseFolder(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Type = folder
	}

	recs, err := s.content.ListCollections(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": recs, "total": len(recs)})
}

// handleGetCollection handles GET /v1/collections/{lang}/{folder}/{file}.
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	folder, err := model.ParseFolder(r.PathValue("folder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t := resolve.Collection(r.PathValue("lang"), folder, r.PathValue("file"))
	if queryBool(r, "meta") {
		t = resolve.CollectionMeta(r.PathValue("lang"), folder, r.PathValue("file"))
	}
	s.serveResolved(w, r, t)
}

// serveResolved resolves t and writes the result. ?path= applies a
// JSONPath selection; ?raw=1 writes the payload itself instead of the
// envelope.
func (s *Server) serveResolved(w http.ResponseWriter, r *http.Request, t resolve.Target) {
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.resolver.Resolve(r.Context(), t)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if expr := r.URL.Query().Get("path"); expr != "" {
		if len(res.Content) == 0 {
			writeError(w, http.StatusBadRequest, "path selection needs JSON content")
			return
		}
		sel, err := resolve.Select(res.Content, expr)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		res.Content = sel
	}

	if res.ContentHash != "" {
		etag := strconv.Quote(res.ContentHash)
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("X-Source-Tier", string(res.SourceTier))

	if !queryBool(r, "raw") {
		writeJSON(w, http.StatusOK, res)
		return
	}
	ctype := "application/json"
	if len(res.Content) == 0 {
		ctype = mimeFor(t.Filename, "text/plain; charset=utf-8")
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body())
}

// handlePutCollection handles PUT /v1/collections/{lang}/{folder}/{file}.
// The body is the JSON document.
func (s *Server) handlePutCollection(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rec, err := s.content.PutCollection(r.Context(), &model.CollectionRecord{
		Language: r.PathValue("lang"),
		Type:     model.Folder(r.PathValue("folder")),
		Filename: r.PathValue("file"),
		Content:  body,
	})
	s.writeMutation(w, r, rec, err)
}

// handleDeleteCollection handles DELETE /v1/collections/{lang}/{folder}/{file}.
func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	folder, err := model.ParseFolder(r.PathValue("folder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.content.DeleteCollection(r.Context(), r.PathValue("lang"), folder, r.PathValue("file"))
	s.writeDeletion(w, r, err)
}

// handleListFiles handles GET /v1/files/{table}.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	table, err := fileTable(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	files, err := s.content.ListFiles(r.Context(), table)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "total": len(files)})
}

// handleGetFile handles GET /v1/files/{table}/{file...}. Flat files go
// through the resolver; assets are streamed with their MIME type.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	table, err := fileTable(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filename := r.PathValue("file")
	if table.IsFlat() {
		s.serveResolved(w, r, resolve.FlatFile(table, filename))
		return
	}

	asset, err := s.content.Asset(r.Context(), table, filename)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	etag := strconv.Quote(asset.ContentHash)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	ctype := asset.MimeType
	if ctype == "" {
		ctype = mimeFor(asset.Filename, "application/octet-stream")
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.Itoa(len(asset.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(asset.Data)
}

// handlePutFile handles PUT /v1/files/{table}/{file...} for flat tables.
// JSON files must carry a valid document; other types are stored as text.
func (s *Server) handlePutFile(w http.ResponseWriter, r *http.Request) {
	table, err := fileTable(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !table.IsFlat() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s does not accept text writes", table))
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	filename := r.PathValue("file")
	rec := &model.FlatFileRecord{
		Table:    table,
		Filename: filename,
		FileType: strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")),
	}
	if rec.FileType == "json" {
		rec.Content = body
	} else {
		rec.RawText = string(body)
	}
	saved, err := s.content.PutFlatFile(r.Context(), rec)
	s.writeMutation(w, r, saved, err)
}

// handleDeleteFile handles DELETE /v1/files/{table}/{file...}.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	table, err := fileTable(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !table.IsFlat() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s does not support deletes", table))
		return
	}
	s.writeDeletion(w, r, s.content.DeleteFlatFile(r.Context(), table, r.PathValue("file")))
}

// writeMutation reports a write. A failed invalidation after a committed
// write is a 200 with a warning.
func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, rec any, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, writeResponse{Record: rec})
	case errors.Is(err, content.ErrInvalidation):
		writeJSON(w, http.StatusOK, writeResponse{Record: rec, Warning: err.Error()})
	default:
		s.writeServiceError(w, r, err)
	}
}

func (s *Server) writeDeletion(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, writeResponse{Deleted: true})
	case errors.Is(err, content.ErrInvalidation):
		writeJSON(w, http.StatusOK, writeResponse{Deleted: true, Warning: err.Error()})
	default:
		s.writeServiceError(w, r, err)
	}
}

// fileTable parses {table} and rejects the collections table.
func fileTable(r *http.Request) (model.Table, error) {
	table, err := model.ParseTable(r.PathValue("table"))
	if err != nil {
		return "", err
	}
	if !table.IsFlat() && !table.IsBinary() {
		return "", fmt.Errorf("%s is not a file table", table)
	}
	return table, nil
}

func mimeFor(filename, fallback string) string {
	if t := mime.TypeByExtension(path.Ext(filename)); t != "" {
		return t
	}
	return fallback
}
