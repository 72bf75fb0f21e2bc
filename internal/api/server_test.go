package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdock/assetdock/internal/analyzer"
	"github.com/assetdock/assetdock/internal/config"
	"github.com/assetdock/assetdock/internal/model"
	"github.com/assetdock/assetdock/internal/queue"
	"github.com/assetdock/assetdock/internal/repository"
)

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (m *memBlob) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memBlob) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, repository.ErrNotFound)
	}
	return data, nil
}

type fakeEnqueuer struct {
	payloads []queue.ExecutePayload
	err      error
}

func (f *fakeEnqueuer) EnqueueExecute(_ context.Context, p queue.ExecutePayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

type testEnv struct {
	server  *httptest.Server
	jobs    *repository.MemoryJobStore
	blobs   *memBlob
	enqueue *fakeEnqueuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{MaxUploadMB: 5}
	jobs := repository.NewMemoryJobStore()
	blobs := newMemBlob()
	enqueue := &fakeEnqueuer{}
	srv := New(cfg, jobs, blobs, enqueue, analyzer.New(nil, nil, nil), nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, jobs: jobs, blobs: blobs, enqueue: enqueue}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, filename, content string) string {
	t.Helper()
	body, contentType := multipartBody(t, filename, content)
	resp, err := http.Post(e.server.URL+"/imports/assets", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.JobID)
	return out.JobID
}

const assetCSV = "Name,Serial Number,Dept\nMacBook,SN-1,Berlin\nThinkPad,SN-2,Vienna\n"

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConfigEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/imports/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		AllowedExtensions []string `json:"allowedExtensions"`
		MaxUploadMB       *int     `json:"maxUploadMb"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{".csv", ".xlsx", ".json"}, out.AllowedExtensions)
	require.NotNil(t, out.MaxUploadMB)
	assert.Equal(t, 5, *out.MaxUploadMB)
}

func TestUploadCreatesPendingJob(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t, "assets.csv", assetCSV)

	job, err := env.jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, job.Status)
	assert.Equal(t, "assets.csv", job.FileName)

	_, err = env.blobs.Download(context.Background(), job.ObjectKey)
	assert.NoError(t, err)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartBody(t, "assets.xls", "legacy")
	resp, err := http.Post(env.server.URL+"/imports/assets", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	env := newTestEnv(t)
	body, contentType := multipartBody(t, "assets.csv", "")
	resp, err := http.Post(env.server.URL+"/imports/assets", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeDeterministic(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t, "assets.csv", assetCSV)

	resp, err := http.Post(env.server.URL+"/imports/"+jobID+"/analyze?type=asset", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out model.AnalysisResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"Name", "Serial Number", "Dept"}, out.Headers)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, "name", out.Matches[0].FieldKey)
	assert.Equal(t, "serial_number", out.Matches[1].FieldKey)
	assert.Empty(t, out.Suggested)
	assert.Equal(t, 2, out.TotalRows)
}

func TestAnalyzeUnknownType(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t, "assets.csv", assetCSV)

	resp, err := http.Post(env.server.URL+"/imports/"+jobID+"/analyze?type=licenses", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Post(env.server.URL+"/imports/nope/analyze", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t, "assets.csv", assetCSV)

	resp, err := http.Get(env.server.URL + "/imports/" + jobID + "/preview")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Headers   []string            `json:"headers"`
		Preview   []map[string]string `json:"preview"`
		TotalRows int                 `json:"totalRows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.TotalRows)
	require.Len(t, out.Preview, 2)
	assert.Equal(t, "MacBook", out.Preview[0]["Name"])
}

func executeBody(t *testing.T, req model.ExecuteRequest) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestExecuteEnqueues(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t, "assets.csv", assetCSV)

	req := model.ExecuteRequest{
		Strategy: model.StrategyNewSet,
		Type:     model.KindAsset,
		Options: model.ImportOptions{
			Mapping:    map[string]string{"Dept": "location"},
			NewSetName: "Q3 Intake",
		},
	}
	resp, err := http.Post(env.server.URL+"/imports/"+jobID+"/execute", "application/json", executeBody(t, req))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, env.enqueue.payloads, 1)
	payload := env.enqueue.payloads[0]
	assert.Equal(t, jobID, payload.JobID)
	assert.Equal(t, model.KindAsset, payload.Kind)
	assert.Equal(t, model.StrategyNewSet, payload.Strategy)
	assert.Equal(t, "location", payload.Options.Mapping["Dept"])
}

func TestExecuteInvalidStrategyNotEnqueued(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t, "assets.csv", assetCSV)

	req := model.ExecuteRequest{Strategy: model.StrategyNewSet, Type: model.KindAsset}
	resp, err := http.Post(env.server.URL+"/imports/"+jobID+"/execute", "application/json", executeBody(t, req))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Empty(t, env.enqueue.payloads)
}

func TestExecuteInvalidMappingNotEnqueued(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t, "assets.csv", assetCSV)

	req := model.ExecuteRequest{
		Strategy: model.StrategyMerge,
		Type:     model.KindAsset,
		Options:  model.ImportOptions{Mapping: map[string]string{"Dept": "department"}},
	}
	resp, err := http.Post(env.server.URL+"/imports/"+jobID+"/execute", "application/json", executeBody(t, req))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Empty(t, env.enqueue.payloads)
}

func TestExecuteNonPendingJobConflicts(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t, "assets.csv", assetCSV)
	require.NoError(t, env.jobs.Complete(context.Background(), jobID, &model.JobResult{Imported: 2}))

	req := model.ExecuteRequest{Strategy: model.StrategyMerge, Type: model.KindAsset}
	resp, err := http.Post(env.server.URL+"/imports/"+jobID+"/execute", "application/json", executeBody(t, req))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestJobEndpoint(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.upload(t, "assets.csv", assetCSV)
	require.NoError(t, env.jobs.Complete(context.Background(), jobID, &model.JobResult{
		Imported: 2,
		Errors:   []string{"row 3: email is required"},
	}))

	resp, err := http.Get(env.server.URL + "/imports/jobs/" + jobID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		JobID  string           `json:"jobId"`
		Status model.JobStatus  `json:"status"`
		Result *model.JobResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, jobID, out.JobID)
	assert.Equal(t, model.StatusCompleted, out.Status)
	require.NotNil(t, out.Result)
	assert.Equal(t, 2, out.Result.Imported)
	require.Len(t, out.Result.Errors, 1)
}

func TestJobEndpointNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/imports/jobs/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadJSONFile(t *testing.T) {
	env := newTestEnv(t)
	content := `[{"Name":"MacBook","Serial Number":"SN-1"}]`
	jobID := env.upload(t, "assets.json", content)

	resp, err := http.Get(env.server.URL + "/imports/" + jobID + "/preview")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Headers []string `json:"headers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"Name", "Serial Number"}, out.Headers)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/imports/assets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.False(t, strings.Contains(resp.Header.Get("Content-Type"), "text/plain"))
}
