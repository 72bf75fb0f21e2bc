// Package client is the REST client for the import API, used by the CLI
// and the wizard.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/assetdock/assetdock/internal/model"
)

// Client talks to the import API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New constructs a client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServerConfig is the upload constraint set advertised by the server.
type ServerConfig struct {
	AllowedExtensions []string `json:"allowedExtensions"`
	MaxUploadMB       *int     `json:"maxUploadMb"`
}

// JobStatus is the poll response for one job.
type JobStatus struct {
	JobID  string           `json:"jobId"`
	Status model.JobStatus  `json:"status"`
	Result *model.JobResult `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Preview is a slice of the uploaded file.
type Preview struct {
	Headers   []string            `json:"headers"`
	Rows      []map[string]string `json:"preview"`
	TotalRows int                 `json:"totalRows"`
}

// Config fetches the server's upload constraints.
func (c *Client) Config(ctx context.Context) (*ServerConfig, error) {
	var out ServerConfig
	if err := c.getJSON(ctx, "/imports/config", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateFile checks the file against the server-advertised constraints
// before any upload bytes move. When the config fetch fails validation is
// permissive: the server re-validates authoritatively anyway.
func (c *Client) ValidateFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	cfg, err := c.Config(ctx)
	if err != nil {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	if len(cfg.AllowedExtensions) > 0 {
		allowed := false
		for _, e := range cfg.AllowedExtensions {
			if strings.EqualFold(e, ext) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("extension %q not allowed (allowed: %s)", ext, strings.Join(cfg.AllowedExtensions, ", "))
		}
	}
	if cfg.MaxUploadMB != nil {
		limit := int64(*cfg.MaxUploadMB) * 1024 * 1024
		if info.Size() > limit {
			return fmt.Errorf("file is %d bytes, above the %d MB limit", info.Size(), *cfg.MaxUploadMB)
		}
	}
	return nil
}

// Upload sends the file and returns the created job id.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	if err := c.ValidateFile(ctx, path); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/imports/assets", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		JobID string `json:"jobId"`
	}
	if err := c.do(req, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// Analyze runs header analysis for the job.
func (c *Client) Analyze(ctx context.Context, jobID string, kind model.EntityKind, useAI bool) (*model.AnalysisResult, error) {
	q := url.Values{}
	q.Set("type", string(kind))
	if useAI {
		q.Set("useAi", "true")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/imports/%s/analyze?%s", c.baseURL, url.PathEscape(jobID), q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	var out model.AnalysisResult
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Preview fetches the first rows of the uploaded file.
func (c *Client) Preview(ctx context.Context, jobID string) (*Preview, error) {
	var out Preview
	if err := c.getJSON(ctx, fmt.Sprintf("/imports/%s/preview", url.PathEscape(jobID)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Execute submits the confirmed mapping and strategy.
func (c *Client) Execute(ctx context.Context, jobID string, req model.ExecuteRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/imports/%s/execute", c.baseURL, url.PathEscape(jobID)), bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, http.StatusAccepted, nil)
}

// Job fetches the current status of a job.
func (c *Client) Job(ctx context.Context, jobID string) (*JobStatus, error) {
	var out JobStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/imports/jobs/%s", url.PathEscape(jobID)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, out)
}

// do sends the request and decodes either the expected payload or the
// server's {"error": ...} body.
func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
