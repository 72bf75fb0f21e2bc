package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/assetdock/assetdock/internal/importer"
	"github.com/assetdock/assetdock/internal/model"
	"github.com/assetdock/assetdock/internal/queue"
	"github.com/assetdock/assetdock/internal/tabular"
)

// JobStore is the slice of the job repository the processor needs.
type JobStore interface {
	Get(ctx context.Context, id string) (*model.ImportJob, error)
	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result *model.JobResult) error
	Fail(ctx context.Context, id string, msg string) error
}

// BlobStore fetches and disposes of uploaded files.
type BlobStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
	Remove(ctx context.Context, objectKey string) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	jobs     JobStore
	store    BlobStore
	executor *importer.Executor
	logger   *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(jobs JobStore, store BlobStore, executor *importer.Executor, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{jobs: jobs, store: store, executor: executor, logger: logger}
}

// Handler registers the import execution handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ExecuteImportTask, p.handleExecute)
	return mux
}

func (p *Processor) handleExecute(ctx context.Context, task *asynq.Task) error {
	var payload queue.ExecutePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	failure := func(err error) error {
		p.logger.Error("import failed", "job", payload.JobID, "error", err)
		_ = p.jobs.Fail(ctx, payload.JobID, err.Error())
		return err
	}

	job, err := p.jobs.Get(ctx, payload.JobID)
	if err != nil {
		return failure(err)
	}
	if err := p.jobs.MarkRunning(ctx, payload.JobID); err != nil {
		return failure(err)
	}
	data, err := p.store.Download(ctx, job.ObjectKey)
	if err != nil {
		return failure(err)
	}
	table, err := tabular.Read(bytes.NewReader(data), filepath.Ext(job.FileName))
	if err != nil {
		return failure(err)
	}
	result, err := p.executor.Run(ctx, table, payload.Kind, payload.Strategy, payload.Options)
	if err != nil {
		return failure(err)
	}
	if err := p.jobs.Complete(ctx, payload.JobID, result); err != nil {
		return failure(err)
	}
	if err := p.store.Remove(ctx, job.ObjectKey); err != nil {
		p.logger.Warn("cleanup upload", "job", payload.JobID, "error", err)
	}
	p.logger.Info("import finished",
		"job", payload.JobID,
		"kind", payload.Kind,
		"imported", result.Imported,
		"errors", len(result.Errors))
	return nil
}
