package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/pipeline"
	"github.com/shaiso/wuic/internal/store"
	"github.com/shaiso/wuic/internal/worker"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// newFacade регистрирует под тегом app heap с двумя скриптами и два
// workflow: site-app (стадии по умолчанию) и plain-app (без стадий).
func newFacade(t *testing.T) *pipeline.Facade {
	t.Helper()
	b := pipeline.NewBuilder(pipeline.Config{Logger: discard()}).ConfigureDefaults()

	defer b.Session("app")()
	must(t, b.RegisterStore("dao", store.NewMemoryBuilder(), map[string]any{
		"resources": map[string]string{"a.js": "var a;", "b.js": "var b;"},
	}))
	must(t, b.RegisterHeap("app", "dao", []string{"*.js"}))
	must(t, b.RegisterTemplate("site", pipeline.TemplateDef{IncludeDefaults: true}))
	must(t, b.RegisterTemplate("plain", pipeline.TemplateDef{}))
	must(t, b.RegisterWorkflow("site-", true, "app", "site"))
	must(t, b.RegisterWorkflow("plain-", true, "app", "plain"))

	return pipeline.NewFacade(b)
}

func newServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.Facade == nil {
		cfg.Facade = newFacade(t)
	}
	cfg.Logger = discard()

	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	must(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	// Без прозрачной распаковки: проверяем Content-Encoding сами
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	must(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	var body struct {
		Data  json.RawMessage `json:"data"`
		Total int             `json:"total"`
	}
	must(t, json.NewDecoder(resp.Body).Decode(&body))
	must(t, json.Unmarshal(body.Data, v))
}

func decodeError(t *testing.T, resp *http.Response) ErrorDetail {
	t.Helper()
	var body ErrorResponse
	must(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

type fakeExporter struct {
	result *worker.ExportResult
	err    error
	calls  []string
}

func (e *fakeExporter) Export(_ context.Context, workflowID string) (*worker.ExportResult, error) {
	e.calls = append(e.calls, workflowID)
	return e.result, e.err
}

type fakePublisher struct {
	tags []string
	err  error
}

func (p *fakePublisher) PublishTagCleared(_ context.Context, tag string) error {
	p.tags = append(p.tags, tag)
	return p.err
}

// Resource Tests

func TestServeResource(t *testing.T) {
	srv := newServer(t, Config{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/wuic/plain-app/a.js", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if got, want := resp.Header.Get("Content-Type"), domain.TypeJavaScript.MimeType(); got != want {
		t.Errorf("expected Content-Type %q, got %q", want, got)
	}
	if resp.Header.Get("Content-Encoding") != "" {
		t.Errorf("unexpected Content-Encoding %q", resp.Header.Get("Content-Encoding"))
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Error("expected request id header")
	}
	body, err := io.ReadAll(resp.Body)
	must(t, err)
	if string(body) != "var a;" {
		t.Errorf("unexpected body %q", body)
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}
	cached := doRequest(t, http.MethodGet, srv.URL+"/wuic/plain-app/a.js", http.Header{
		"If-None-Match": {etag},
	})
	if cached.StatusCode != http.StatusNotModified {
		t.Errorf("expected status 304, got %d", cached.StatusCode)
	}
}

func TestServeResource_Compressed(t *testing.T) {
	srv := newServer(t, Config{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/wuic/site-app/aggregate.js", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("expected Content-Encoding gzip, got %q", got)
	}

	zr, err := gzip.NewReader(resp.Body)
	must(t, err)
	data, err := io.ReadAll(zr)
	must(t, err)
	for _, want := range []string{"var a;", "var b;"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("aggregate %q does not contain %q", data, want)
		}
	}
}

func TestServeResource_NotFound(t *testing.T) {
	srv := newServer(t, Config{})

	tests := []struct {
		name string
		path string
	}{
		{name: "unknown workflow", path: "/wuic/nope/a.js"},
		{name: "unknown resource", path: "/wuic/plain-app/missing.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, srv.URL+tt.path, nil)
			if resp.StatusCode != http.StatusNotFound {
				t.Fatalf("expected status 404, got %d", resp.StatusCode)
			}
			if e := decodeError(t, resp); e.Code != ErrCodeNotFound {
				t.Errorf("expected code %s, got %s", ErrCodeNotFound, e.Code)
			}
		})
	}
}

// Workflow Tests

func TestListWorkflows(t *testing.T) {
	srv := newServer(t, Config{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/workflows", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var got []WorkflowResponse
	decodeData(t, resp, &got)

	type summary struct {
		ID     string
		HeapID string
		Cached bool
	}
	var summaries []summary
	for _, wf := range got {
		summaries = append(summaries, summary{ID: wf.ID, HeapID: wf.HeapID, Cached: wf.Cached})
	}

	want := []summary{
		{ID: "plain-app", HeapID: "app", Cached: false},
		{ID: "site-app", HeapID: "app", Cached: true},
	}
	if diff := cmp.Diff(want, summaries); diff != "" {
		t.Errorf("workflows mismatch (-want +got):\n%s", diff)
	}
}

func TestGetWorkflow_NotFound(t *testing.T) {
	srv := newServer(t, Config{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/workflows/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestProcessWorkflow(t *testing.T) {
	srv := newServer(t, Config{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/workflows/plain-app/resources", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var got []ResourceResponse
	decodeData(t, resp, &got)

	var urls []string
	for _, r := range got {
		if r.Version == "" {
			t.Errorf("resource %s has no version", r.Name)
		}
		urls = append(urls, r.URL)
	}
	sort.Strings(urls)
	want := []string{"/wuic/plain-app/a.js", "/wuic/plain-app/b.js"}
	if diff := cmp.Diff(want, urls); diff != "" {
		t.Errorf("urls mismatch (-want +got):\n%s", diff)
	}
}

func TestExportWorkflow(t *testing.T) {
	tests := []struct {
		name       string
		exporter   *fakeExporter
		wantStatus int
		wantCode   ErrorCode
	}{
		{
			name:       "not configured",
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeUnavailable,
		},
		{
			name:       "no output store",
			exporter:   &fakeExporter{err: worker.ErrNoOutputStore},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   ErrCodeInvalidState,
		},
		{
			name:       "unknown workflow",
			exporter:   &fakeExporter{err: pipeline.ErrWorkflowNotFound},
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "failure",
			exporter:   &fakeExporter{err: errors.New("disk full")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternalError,
		},
		{
			name: "success",
			exporter: &fakeExporter{result: &worker.ExportResult{
				WorkflowID: "site-app",
				Saved:      []string{"site-app/aggregate.js.gz"},
				Stores:     1,
			}},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			if tt.exporter != nil {
				cfg.Exporter = tt.exporter
			}
			srv := newServer(t, cfg)

			resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/workflows/site-app/export", nil)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			if tt.wantCode != "" {
				if e := decodeError(t, resp); e.Code != tt.wantCode {
					t.Errorf("expected code %s, got %s", tt.wantCode, e.Code)
				}
				return
			}

			var got worker.ExportResult
			decodeData(t, resp, &got)
			if diff := cmp.Diff(tt.exporter.result.Saved, got.Saved); diff != "" {
				t.Errorf("saved mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{"site-app"}, tt.exporter.calls); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Tag Tests

func TestClearTag(t *testing.T) {
	pub := &fakePublisher{}
	f := newFacade(t)
	srv := newServer(t, Config{Facade: f, Publisher: pub})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/tags/app/clear", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var got TagResponse
	decodeData(t, resp, &got)
	if got != (TagResponse{Tag: "app", Published: true}) {
		t.Errorf("unexpected response %+v", got)
	}
	if diff := cmp.Diff([]string{"app"}, pub.tags); diff != "" {
		t.Errorf("published tags mismatch (-want +got):\n%s", diff)
	}

	ids, err := f.WorkflowIDs(context.Background())
	must(t, err)
	if len(ids) != 0 {
		t.Errorf("expected no workflows after clear, got %v", ids)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/tags", nil)
	var tags []string
	decodeData(t, resp, &tags)
	if diff := cmp.Diff([]string{pipeline.DefaultTag}, tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestClearTag_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	srv := newServer(t, Config{Publisher: pub})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/tags/app/clear", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var got TagResponse
	decodeData(t, resp, &got)
	if got.Published {
		t.Error("expected published=false when broker fails")
	}
}

// Middleware Tests

func TestRecovery(t *testing.T) {
	h := Chain(Recovery(discard()), Logging(discard()))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if got := rec.Header().Get(HeaderRequestID); got != "req-1" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
	var body ErrorResponse
	must(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body))
	if body.Error.Code != ErrCodeInternalError {
		t.Errorf("expected code %s, got %s", ErrCodeInternalError, body.Error.Code)
	}
}
