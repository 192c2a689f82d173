package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultContextPath — префикс URL ресурсов на сервере.
const DefaultContextPath = "/wuic"

// ErrAPI — сервер вернул ответ с ошибкой.
var ErrAPI = errors.New("api error")

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// WorkflowResponse — workflow из API.
type WorkflowResponse struct {
	ID          string   `json:"id"`
	HeapID      string   `json:"heap_id"`
	Composition []string `json:"composition,omitempty"`
	Types       []string `json:"types"`
	Cached      bool     `json:"cached"`
	Stores      int      `json:"stores"`
}

// ResourceResponse — обработанный ресурс из API.
type ResourceResponse struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	Version  string `json:"version"`
	Encoding string `json:"encoding,omitempty"`
	URL      string `json:"url"`
}

// ExportResponse — итог выгрузки workflow.
type ExportResponse struct {
	RunID      string   `json:"run_id"`
	WorkflowID string   `json:"workflow_id"`
	Saved      []string `json:"saved"`
	Stores     int      `json:"stores"`
	Duration   int64    `json:"duration"`
}

// TagResponse — ответ на удаление тега.
type TagResponse struct {
	Tag       string `json:"tag"`
	Published bool   `json:"published"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API сервера wuic.
type Client struct {
	baseURL     string
	contextPath string
	httpClient  *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		contextPath: DefaultContextPath,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Workflows ---

// ListWorkflows возвращает все workflow.
func (c *Client) ListWorkflows() ([]WorkflowResponse, error) {
	var workflows []WorkflowResponse
	err := c.list("/api/v1/workflows", &workflows)
	return workflows, err
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+url.PathEscape(id), &wf)
	return &wf, err
}

// ProcessWorkflow обрабатывает workflow и возвращает описание результата.
func (c *Client) ProcessWorkflow(id string) ([]ResourceResponse, error) {
	var resources []ResourceResponse
	err := c.list("/api/v1/workflows/"+url.PathEscape(id)+"/resources", &resources)
	return resources, err
}

// ExportWorkflow выгружает workflow в выходные хранилища.
func (c *Client) ExportWorkflow(id string) (*ExportResponse, error) {
	var res ExportResponse
	err := c.post("/api/v1/workflows/"+url.PathEscape(id)+"/export", nil, &res)
	return &res, err
}

// FetchResource возвращает содержимое обработанного ресурса и его MIME тип.
// Сжатое содержимое распаковывается транспортом.
func (c *Client) FetchResource(workflowID, path string) ([]byte, string, error) {
	resp, err := c.do(http.MethodGet, c.contextPath+"/"+url.PathEscape(workflowID)+"/"+strings.TrimLeft(path, "/"), nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, "", err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read resource: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// --- Tags ---

// ListTags возвращает активные теги.
func (c *Client) ListTags() ([]string, error) {
	var tags []string
	err := c.list("/api/v1/tags", &tags)
	return tags, err
}

// ClearTag удаляет конфигурацию тега.
func (c *Client) ClearTag(tag string) (*TagResponse, error) {
	var res TagResponse
	err := c.post("/api/v1/tags/"+url.PathEscape(tag)+"/clear", nil, &res)
	return &res, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("%w: HTTP %d", ErrAPI, resp.StatusCode)
	}

	return fmt.Errorf("%w: %s: %s", ErrAPI, er.Error.Code, er.Error.Message)
}
