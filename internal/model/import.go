// Package model contains the types shared between the API, worker and client.
package model

import "time"

// EntityKind selects which entity an import targets.
type EntityKind string

const (
	KindAsset EntityKind = "asset"
	KindUser  EntityKind = "user"
)

// Valid reports whether the kind is one of the supported entity kinds.
func (k EntityKind) Valid() bool {
	return k == KindAsset || k == KindUser
}

// Strategy governs how imported rows are merged into existing data.
type Strategy string

const (
	// StrategyMerge writes rows into the global scope, updating records that
	// match on the natural key (assets: serial number, users: email).
	StrategyMerge Strategy = "MERGE"
	// StrategyNewSet creates a new named asset set and places all rows in it.
	// Only valid for asset imports.
	StrategyNewSet Strategy = "NEW_SET"
	// StrategyExistingSet places rows into an already existing asset set.
	StrategyExistingSet Strategy = "EXISTING_SET"
)

// JobStatus is the poll-visible state of an import job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further status change is expected.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ImportOptions carries the finalized mapping and strategy parameters
// submitted for execution.
type ImportOptions struct {
	// Mapping is header → field key. An empty value ignores the column.
	Mapping map[string]string `json:"mapping"`
	// NewSetName names the set created by NEW_SET.
	NewSetName string `json:"newSetName,omitempty"`
	// SetID targets an existing set for EXISTING_SET.
	SetID string `json:"setId,omitempty"`
	// CreateMissingFields materializes unmapped columns as custom field
	// definitions instead of discarding them.
	CreateMissingFields bool `json:"createMissingFields"`
}

// ExecuteRequest is the body of POST /imports/{jobId}/execute.
type ExecuteRequest struct {
	Strategy Strategy      `json:"strategy"`
	Type     EntityKind    `json:"type"`
	Options  ImportOptions `json:"options"`
}

// HeaderMatch pairs a file header with the field key it deterministically
// resolved to.
type HeaderMatch struct {
	Header   string `json:"header"`
	FieldKey string `json:"fieldKey"`
}

// Suggestion is a single AI-proposed header mapping.
type Suggestion struct {
	Header     string  `json:"header"`
	Target     string  `json:"target"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// AnalysisResult is the output of analyzing an uploaded file for one job.
// Every header referenced by Matches or Suggested also appears in Headers.
type AnalysisResult struct {
	// Headers lists the distinct column headers in file order.
	Headers []string `json:"headers"`
	// Matches are the deterministic header → field key resolutions.
	Matches []HeaderMatch `json:"matches"`
	// Suggested maps headers to AI-proposed field keys. Only present when
	// AI-assisted analysis was requested and an LLM is configured.
	Suggested map[string]string `json:"suggested,omitempty"`
	// Suggestions carries the full AI output for UI disclosure.
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	TotalRows   int          `json:"totalRows"`
}

// JobResult summarizes a finished import.
type JobResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
	SetID    string   `json:"setId,omitempty"`
}

// ImportJob is one uploaded file and its processing lifecycle.
type ImportJob struct {
	ID           string     `json:"id"`
	FileName     string     `json:"fileName"`
	ObjectKey    string     `json:"-"`
	SizeBytes    int64      `json:"sizeBytes"`
	Status       JobStatus  `json:"status"`
	Result       *JobResult `json:"result,omitempty"`
	ErrorMessage *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}
