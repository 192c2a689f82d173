package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// newFakeAPI поднимает сервер с ответами в формате API.
func newFakeAPI(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var cleared []string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []WorkflowResponse{
				{ID: "site-app", HeapID: "app", Types: []string{"css", "js"}, Cached: true, Stores: 1},
			},
			"total": 1,
		})
	})
	mux.HandleFunc("GET /api/v1/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "workflow not found: " + r.PathValue("id")},
		})
	})
	mux.HandleFunc("GET /api/v1/workflows/{id}/resources", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []ResourceResponse{
				{Name: "aggregate.js", Type: "js", Version: "abc", Encoding: "gzip", URL: "/wuic/site-app/aggregate.js"},
			},
			"total": 1,
		})
	})
	mux.HandleFunc("POST /api/v1/workflows/{id}/export", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": ExportResponse{WorkflowID: r.PathValue("id"), Saved: []string{"site-app/aggregate.js.gz"}, Stores: 1},
		})
	})
	mux.HandleFunc("POST /api/v1/tags/{tag}/clear", func(w http.ResponseWriter, r *http.Request) {
		cleared = append(cleared, r.PathValue("tag"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": TagResponse{Tag: r.PathValue("tag"), Published: true},
		})
	})
	mux.HandleFunc("GET /wuic/{workflow}/{path...}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		w.Write([]byte("// " + r.PathValue("workflow") + "/" + r.PathValue("path")))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &cleared
}

// execute выполняет команду так же, как cmd/wuic, и возвращает stdout и stderr.
func execute(t *testing.T, baseURL string, jsonMode bool, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	clientFn := func() *Client { return NewClient(baseURL) }
	outputFn := func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) }

	root := &cobra.Command{Use: "wuic", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		NewWorkflowCmd(clientFn, outputFn),
		NewTagCmd(clientFn, outputFn),
	)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestClient_ListWorkflows(t *testing.T) {
	srv, _ := newFakeAPI(t)

	workflows, err := NewClient(srv.URL + "/").ListWorkflows()
	must(t, err)

	want := []WorkflowResponse{{ID: "site-app", HeapID: "app", Types: []string{"css", "js"}, Cached: true, Stores: 1}}
	if diff := cmp.Diff(want, workflows); diff != "" {
		t.Errorf("workflows mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_APIError(t *testing.T) {
	srv, _ := newFakeAPI(t)

	_, err := NewClient(srv.URL).GetWorkflow("nope")
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
	if !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected error code in %q", err)
	}
}

func TestClient_FetchResource(t *testing.T) {
	srv, _ := newFakeAPI(t)

	data, contentType, err := NewClient(srv.URL).FetchResource("site-app", "/js/app.js")
	must(t, err)
	if string(data) != "// site-app/js/app.js" {
		t.Errorf("unexpected body %q", data)
	}
	if contentType != "text/javascript" {
		t.Errorf("unexpected content type %q", contentType)
	}
}

func TestWorkflowListCmd(t *testing.T) {
	srv, _ := newFakeAPI(t)

	stdout, _, err := execute(t, srv.URL, false, "workflow", "list")
	must(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, separator and one row, got %q", stdout)
	}
	if fields := strings.Fields(lines[2]); !cmp.Equal(fields, []string{"site-app", "app", "css,js", "true", "1"}) {
		t.Errorf("unexpected row %q", lines[2])
	}
}

func TestWorkflowListCmd_JSON(t *testing.T) {
	srv, _ := newFakeAPI(t)

	stdout, _, err := execute(t, srv.URL, true, "workflow", "list")
	must(t, err)

	var got []WorkflowResponse
	must(t, json.Unmarshal([]byte(stdout), &got))
	if len(got) != 1 || got[0].ID != "site-app" {
		t.Errorf("unexpected workflows %+v", got)
	}
}

func TestWorkflowProcessCmd(t *testing.T) {
	srv, _ := newFakeAPI(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "list resources",
			args: []string{"workflow", "process", "site-app"},
			want: "/wuic/site-app/aggregate.js",
		},
		{
			name: "single resource",
			args: []string{"workflow", "process", "site-app", "--path", "aggregate.js"},
			want: "// site-app/aggregate.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, srv.URL, false, tt.args...)
			must(t, err)
			if !strings.Contains(stdout, tt.want) {
				t.Errorf("expected %q in output %q", tt.want, stdout)
			}
		})
	}
}

func TestWorkflowExportCmd(t *testing.T) {
	srv, _ := newFakeAPI(t)

	stdout, stderr, err := execute(t, srv.URL, false, "workflow", "export", "site-app")
	must(t, err)
	if !strings.Contains(stderr, "Workflow exported: site-app (1 resources, 1 stores)") {
		t.Errorf("unexpected message %q", stderr)
	}
	if !strings.Contains(stdout, "site-app/aggregate.js.gz") {
		t.Errorf("expected saved name in %q", stdout)
	}
}

func TestWorkflowShowCmd_NotFound(t *testing.T) {
	srv, _ := newFakeAPI(t)

	_, _, err := execute(t, srv.URL, false, "workflow", "show", "nope")
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
}

func TestTagClearCmd(t *testing.T) {
	srv, cleared := newFakeAPI(t)

	_, stderr, err := execute(t, srv.URL, false, "tag", "clear", "wuic.config")
	must(t, err)

	if diff := cmp.Diff([]string{"wuic.config"}, *cleared); diff != "" {
		t.Errorf("cleared tags mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stderr, "Tag cleared: wuic.config (cluster notified)") {
		t.Errorf("unexpected message %q", stderr)
	}
}

func TestTagClearCmd_RequiresArg(t *testing.T) {
	srv, _ := newFakeAPI(t)

	if _, _, err := execute(t, srv.URL, false, "tag", "clear"); err == nil {
		t.Fatal("expected error for missing tag argument")
	}
}
