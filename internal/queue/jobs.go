package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/assetdock/assetdock/internal/model"
)

const (
	// ExecuteImportTask is scheduled when a client confirms an import.
	ExecuteImportTask = "import:execute"
)

// ExecutePayload is serialized into the task payload so the worker knows
// which job to run and with what mapping.
type ExecutePayload struct {
	JobID    string              `json:"job_id"`
	Kind     model.EntityKind    `json:"kind"`
	Strategy model.Strategy      `json:"strategy"`
	Options  model.ImportOptions `json:"options"`
}

// Client wraps the asynq producer so HTTP handlers depend on a small
// interface instead of asynq directly.
type Client struct {
	inner *asynq.Client
}

// NewClient creates a producer for the given Redis connection.
func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{inner: asynq.NewClient(opt)}
}

// EnqueueExecute schedules the payload on the import queue.
func (c *Client) EnqueueExecute(ctx context.Context, payload ExecutePayload) error {
	return EnqueueExecute(ctx, c.inner, payload)
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.inner.Close()
}

// EnqueueExecute enqueues an import execution job. Imports are not retried:
// a partially applied run must surface as a failed job, not re-run rows.
func EnqueueExecute(ctx context.Context, client *asynq.Client, payload ExecutePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ExecuteImportTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("enqueue execute task: %w", err)
	}
	return nil
}
