package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/assetdock/assetdock/internal/model"
)

// MemoryJobStore is an in-memory ImportJobRepository equivalent used by tests
// and local development without Postgres.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.ImportJob
}

// NewMemoryJobStore constructs an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*model.ImportJob)}
}

func (m *MemoryJobStore) Create(_ context.Context, job *model.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	job.Status = model.StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryJobStore) Get(_ context.Context, id string) (*model.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("import job %s: %w", id, ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryJobStore) MarkRunning(_ context.Context, id string) error {
	return m.update(id, func(job *model.ImportJob) {
		job.Status = model.StatusRunning
	})
}

func (m *MemoryJobStore) Complete(_ context.Context, id string, result *model.JobResult) error {
	return m.update(id, func(job *model.ImportJob) {
		now := time.Now().UTC()
		job.Status = model.StatusCompleted
		job.Result = result
		job.ErrorMessage = nil
		job.CompletedAt = &now
	})
}

func (m *MemoryJobStore) Fail(_ context.Context, id string, msg string) error {
	return m.update(id, func(job *model.ImportJob) {
		now := time.Now().UTC()
		job.Status = model.StatusFailed
		job.ErrorMessage = &msg
		job.CompletedAt = &now
	})
}

func (m *MemoryJobStore) update(id string, fn func(*model.ImportJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("import job %s: %w", id, ErrNotFound)
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
	return nil
}
