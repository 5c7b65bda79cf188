package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kuhandran/Content-Hub-sub001/internal/content"
	"github.com/kuhandran/Content-Hub-sub001/internal/events"
	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/resolve"
	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
)

// HTTPClient implements HubClient using the content hub HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Reads ---

func (c *HTTPClient) ListCollections(ctx context.Context, filter model.CollectionFilter) ([]*model.CollectionRecord, error) {
	q := url.Values{}
	if filter.Language != "" {
		q.Set("language", filter.Language)
	}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	var resp struct {
		Collections []*model.CollectionRecord `json:"collections"`
	}
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/collections", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Collections, nil
}

func (c *HTTPClient) GetCollection(ctx context.Context, req *GetRequest) (*resolve.Result, error) {
	q := url.Values{}
	if req.Meta {
		q.Set("meta", "1")
	}
	if req.Path != "" {
		q.Set("path", req.Path)
	}
	var res resolve.Result
	if err := c.doJSON(ctx, http.MethodGet, withQuery(collectionPath(req.Language, req.Folder, req.Filename), q), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ListFiles(ctx context.Context, table model.Table) ([]content.FileSummary, error) {
	var resp struct {
		Files []content.FileSummary `json:"files"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/files/"+url.PathEscape(string(table)), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// GetFile resolves a flat file. Binary assets are not served through the
// JSON envelope; fetch them with a plain GET.
func (c *HTTPClient) GetFile(ctx context.Context, table model.Table, filename, path string) (*resolve.Result, error) {
	q := url.Values{}
	if path != "" {
		q.Set("path", path)
	}
	var res resolve.Result
	if err := c.doJSON(ctx, http.MethodGet, withQuery(filePath(table, filename), q), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Admin writes ---

func (c *HTTPClient) PutCollection(ctx context.Context, lang string, folder model.Folder, filename string, doc json.RawMessage) (*WriteResponse, error) {
	var resp WriteResponse
	if err := c.doRaw(ctx, http.MethodPut, collectionPath(lang, folder, filename), "application/json", doc, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) DeleteCollection(ctx context.Context, lang string, folder model.Folder, filename string) (*WriteResponse, error) {
	var resp WriteResponse
	if err := c.doJSON(ctx, http.MethodDelete, collectionPath(lang, folder, filename), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) PutFile(ctx context.Context, table model.Table, filename string, body []byte) (*WriteResponse, error) {
	var resp WriteResponse
	if err := c.doRaw(ctx, http.MethodPut, filePath(table, filename), "application/octet-stream", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) DeleteFile(ctx context.Context, table model.Table, filename string) (*WriteResponse, error) {
	var resp WriteResponse
	if err := c.doJSON(ctx, http.MethodDelete, filePath(table, filename), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Sync ---

func (c *HTTPClient) Pump(ctx context.Context, opts contentsync.PumpOptions) (*model.PumpReport, error) {
	q := url.Values{}
	if opts.ChangedOnly {
		q.Set("changed_only", "true")
	}
	var report model.PumpReport
	if err := c.doJSON(ctx, http.MethodPost, withQuery("/v1/sync/pump", q), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *HTTPClient) Diff(ctx context.Context) (*model.DiffReport, error) {
	var report model.DiffReport
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sync/diff", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *HTTPClient) Clear(ctx context.Context) (*model.ClearReport, error) {
	var report model.ClearReport
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sync/clear", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *HTTPClient) SyncStatus(ctx context.Context) (*contentsync.Status, error) {
	var st contentsync.Status
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sync/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) Manifest(ctx context.Context) ([]*model.ManifestEntry, error) {
	var resp struct {
		Entries []*model.ManifestEntry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sync/manifest", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (map[string]int64, error) {
	var resp struct {
		Rows map[string]int64 `json:"rows"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// --- Events ---

// Stream opens the server-sent event stream and delivers events on the
// returned channel until ctx is cancelled or the server closes the stream.
func (c *HTTPClient) Stream(ctx context.Context, topics []string) (<-chan events.Message, error) {
	q := url.Values{}
	if len(topics) > 0 {
		q.Set("topics", strings.Join(topics, ","))
	}
	req, err := c.newRequest(ctx, http.MethodGet, withQuery("/v1/events/stream", q), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, apiError(resp.StatusCode, body)
	}

	ch := make(chan events.Message, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		readEventStream(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// readEventStream parses "event:" and "data:" lines; a blank line ends an
// event. Comment lines (keepalives) are ignored.
func readEventStream(ctx context.Context, r io.Reader, ch chan<- events.Message) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var msg events.Message
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if msg.Topic == "" && msg.Data == nil {
				continue
			}
			select {
			case ch <- msg:
			case <-ctx.Done():
				return
			}
			msg = events.Message{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			msg.Topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			msg.Data = append(msg.Data, strings.TrimPrefix(line, "data:")...)
		}
	}
}

// --- Health ---

// Health reports the server's health. A 503 still returns the decoded body
// alongside the error so callers can show which check failed.
func (c *HTTPClient) Health(ctx context.Context) (*HealthResponse, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/v1/health", "", nil)
	if err != nil {
		return nil, err
	}
	var h HealthResponse
	if jsonErr := json.Unmarshal(body, &h); jsonErr != nil {
		if status >= 400 {
			return nil, apiError(status, body)
		}
		return nil, fmt.Errorf("decoding response: %w", jsonErr)
	}
	if status >= 400 {
		return &h, apiError(status, body)
	}
	return &h, nil
}

// --- HTTP helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func apiError(status int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

func collectionPath(lang string, folder model.Folder, filename string) string {
	return "/v1/collections/" + url.PathEscape(lang) + "/" + url.PathEscape(string(folder)) + "/" + url.PathEscape(filename)
}

// filePath escapes each segment of filename so nested asset paths keep
// their slashes.
func filePath(table model.Table, filename string) string {
	parts := strings.Split(filename, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "/v1/files/" + url.PathEscape(string(table)) + "/" + strings.Join(parts, "/")
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do performs a request and returns the status code and body.
func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// doRaw sends body as-is and decodes the JSON response into result.
func (c *HTTPClient) doRaw(ctx context.Context, method, path, contentType string, body []byte, result any) error {
	status, respBody, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	if status >= 400 {
		return apiError(status, respBody)
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var data []byte
	contentType := ""
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		contentType = "application/json"
	}
	return c.doRaw(ctx, method, path, contentType, data, result)
}
