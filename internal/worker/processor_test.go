package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdock/assetdock/internal/importer"
	"github.com/assetdock/assetdock/internal/model"
	"github.com/assetdock/assetdock/internal/queue"
	"github.com/assetdock/assetdock/internal/repository"
)

type memBlob map[string][]byte

func (m memBlob) Download(_ context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, repository.ErrNotFound)
	}
	return data, nil
}

func (m memBlob) Remove(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

type nullAssets struct {
	created int
}

func (n *nullAssets) FindBySerial(context.Context, string) (*model.Asset, error) {
	return nil, repository.ErrNotFound
}

func (n *nullAssets) FindBySerialInSet(context.Context, string, string) (*model.Asset, error) {
	return nil, repository.ErrNotFound
}

func (n *nullAssets) Create(context.Context, *model.Asset) error {
	n.created++
	return nil
}

func (n *nullAssets) Update(context.Context, *model.Asset) error { return nil }

func executeTask(t *testing.T, payload queue.ExecutePayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.ExecuteImportTask, data)
}

func TestHandleExecuteCompletesJob(t *testing.T) {
	jobs := repository.NewMemoryJobStore()
	blobs := memBlob{}
	assets := &nullAssets{}
	exec := importer.New(assets, nil, nil, nil, nil)
	p := NewProcessor(jobs, blobs, exec, nil)

	job := &model.ImportJob{ID: "j1", FileName: "assets.csv", ObjectKey: "uploads/j1/assets.csv"}
	require.NoError(t, jobs.Create(context.Background(), job))
	blobs[job.ObjectKey] = []byte("Name,Serial Number\nMacBook,SN-1\nThinkPad,SN-2\n")

	task := executeTask(t, queue.ExecutePayload{
		JobID:    "j1",
		Kind:     model.KindAsset,
		Strategy: model.StrategyMerge,
	})
	require.NoError(t, p.Handler().ProcessTask(context.Background(), task))

	got, err := jobs.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 2, got.Result.Imported)
	assert.Equal(t, 2, assets.created)
	assert.NotContains(t, blobs, job.ObjectKey)
}

func TestHandleExecuteUnparsableFileFailsJob(t *testing.T) {
	jobs := repository.NewMemoryJobStore()
	blobs := memBlob{}
	exec := importer.New(&nullAssets{}, nil, nil, nil, nil)
	p := NewProcessor(jobs, blobs, exec, nil)

	job := &model.ImportJob{ID: "j2", FileName: "assets.json", ObjectKey: "uploads/j2/assets.json"}
	require.NoError(t, jobs.Create(context.Background(), job))
	blobs[job.ObjectKey] = []byte("{not json")

	task := executeTask(t, queue.ExecutePayload{
		JobID:    "j2",
		Kind:     model.KindAsset,
		Strategy: model.StrategyMerge,
	})
	require.Error(t, p.Handler().ProcessTask(context.Background(), task))

	got, err := jobs.Get(context.Background(), "j2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
}

func TestHandleExecuteMissingObjectFailsJob(t *testing.T) {
	jobs := repository.NewMemoryJobStore()
	exec := importer.New(&nullAssets{}, nil, nil, nil, nil)
	p := NewProcessor(jobs, memBlob{}, exec, nil)

	job := &model.ImportJob{ID: "j3", FileName: "assets.csv", ObjectKey: "uploads/j3/assets.csv"}
	require.NoError(t, jobs.Create(context.Background(), job))

	task := executeTask(t, queue.ExecutePayload{
		JobID:    "j3",
		Kind:     model.KindAsset,
		Strategy: model.StrategyMerge,
	})
	require.Error(t, p.Handler().ProcessTask(context.Background(), task))

	got, err := jobs.Get(context.Background(), "j3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
}
