// Package wizard drives the multi-step import flow as an explicit state
// machine: Intake → Analyzed → Executing → Done|Failed.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/assetdock/assetdock/internal/client"
	"github.com/assetdock/assetdock/internal/mapping"
	"github.com/assetdock/assetdock/internal/model"
)

// Step is the wizard's current state.
type Step int

const (
	StepIntake Step = iota
	StepAnalyzed
	StepExecuting
	StepDone
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepIntake:
		return "intake"
	case StepAnalyzed:
		return "analyzed"
	case StepExecuting:
		return "executing"
	case StepDone:
		return "done"
	case StepFailed:
		return "failed"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ErrInvalidTransition is returned when an operation is not valid in the
// wizard's current step.
var ErrInvalidTransition = errors.New("invalid wizard transition")

// Backend is the client surface the wizard drives.
type Backend interface {
	Upload(ctx context.Context, path string) (string, error)
	Analyze(ctx context.Context, jobID string, kind model.EntityKind, useAI bool) (*model.AnalysisResult, error)
	Execute(ctx context.Context, jobID string, req model.ExecuteRequest) error
	WaitForJob(ctx context.Context, jobID string, opts client.WaitOptions) (*client.JobStatus, error)
}

// Wizard holds the state of one import flow.
type Wizard struct {
	backend Backend
	step    Step

	jobID    string
	kind     model.EntityKind
	analysis *model.AnalysisResult
	mapping  *mapping.Mapping

	strategy model.Strategy
	options  model.ImportOptions

	result *client.JobStatus
}

// New starts a wizard at the intake step.
func New(backend Backend) *Wizard {
	return &Wizard{backend: backend, step: StepIntake}
}

// Step returns the current step.
func (w *Wizard) Step() Step { return w.step }

// JobID returns the id of the current upload, empty before the first one.
func (w *Wizard) JobID() string { return w.jobID }

// Analysis returns the last analysis result, nil before Analyze.
func (w *Wizard) Analysis() *model.AnalysisResult { return w.analysis }

// Result returns the terminal job status once the wizard is done or failed.
func (w *Wizard) Result() *client.JobStatus { return w.result }

// Upload sends a file and resets all prior wizard state: a re-upload
// discards the previous job id, analysis, mapping and strategy. It is not
// allowed once execution started.
func (w *Wizard) Upload(ctx context.Context, path string) error {
	if w.step == StepExecuting || w.step == StepDone || w.step == StepFailed {
		return fmt.Errorf("%w: cannot upload in step %s", ErrInvalidTransition, w.step)
	}
	jobID, err := w.backend.Upload(ctx, path)
	if err != nil {
		return err
	}
	*w = Wizard{backend: w.backend, step: StepIntake, jobID: jobID}
	return nil
}

// Analyze runs header analysis and moves the wizard to Analyzed, seeding
// the editable mapping from the deterministic matches and AI suggestions.
func (w *Wizard) Analyze(ctx context.Context, kind model.EntityKind, useAI bool) error {
	if w.step != StepIntake && w.step != StepAnalyzed {
		return fmt.Errorf("%w: cannot analyze in step %s", ErrInvalidTransition, w.step)
	}
	if w.jobID == "" {
		return fmt.Errorf("%w: nothing uploaded yet", ErrInvalidTransition)
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown entity type %q", kind)
	}
	res, err := w.backend.Analyze(ctx, w.jobID, kind, useAI)
	if err != nil {
		return err
	}
	w.kind = kind
	w.analysis = res
	w.mapping = mapping.Seed(res, kind, nil)
	w.strategy = ""
	w.options = model.ImportOptions{}
	w.step = StepAnalyzed
	return nil
}

// Mapping exposes the editable mapping, nil before analysis.
func (w *Wizard) Mapping() *mapping.Mapping { return w.mapping }

// Override changes one header's target while in the Analyzed step.
func (w *Wizard) Override(header, target string) error {
	if w.step != StepAnalyzed {
		return fmt.Errorf("%w: cannot edit mapping in step %s", ErrInvalidTransition, w.step)
	}
	return w.mapping.Override(header, target)
}

// UseMerge selects the MERGE strategy.
func (w *Wizard) UseMerge() error {
	return w.setStrategy(model.StrategyMerge, model.ImportOptions{})
}

// UseNewSet selects NEW_SET with the given set name. Sets hold assets,
// so the strategy is not offered for user imports.
func (w *Wizard) UseNewSet(name string) error {
	if w.kind == model.KindUser {
		return errors.New("NEW_SET is not available for user imports")
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("a set name is required for NEW_SET")
	}
	return w.setStrategy(model.StrategyNewSet, model.ImportOptions{NewSetName: name})
}

// UseExistingSet selects EXISTING_SET targeting the given set.
func (w *Wizard) UseExistingSet(setID string) error {
	if setID == "" {
		return errors.New("a set id is required for EXISTING_SET")
	}
	return w.setStrategy(model.StrategyExistingSet, model.ImportOptions{SetID: setID})
}

// CreateMissingFields toggles materializing unmapped columns as custom
// fields.
func (w *Wizard) CreateMissingFields(v bool) error {
	if w.step != StepAnalyzed {
		return fmt.Errorf("%w: cannot change options in step %s", ErrInvalidTransition, w.step)
	}
	w.options.CreateMissingFields = v
	return nil
}

func (w *Wizard) setStrategy(strategy model.Strategy, opts model.ImportOptions) error {
	if w.step != StepAnalyzed {
		return fmt.Errorf("%w: cannot choose a strategy in step %s", ErrInvalidTransition, w.step)
	}
	opts.CreateMissingFields = w.options.CreateMissingFields
	w.strategy = strategy
	w.options = opts
	return nil
}

// Execute submits the mapping and strategy and moves to Executing. The
// strategy must have been chosen first.
func (w *Wizard) Execute(ctx context.Context) error {
	if w.step != StepAnalyzed {
		return fmt.Errorf("%w: cannot execute in step %s", ErrInvalidTransition, w.step)
	}
	if w.strategy == "" {
		return fmt.Errorf("%w: no strategy chosen", ErrInvalidTransition)
	}
	opts := w.options
	opts.Mapping = w.mapping.Entries()
	req := model.ExecuteRequest{
		Strategy: w.strategy,
		Type:     w.kind,
		Options:  opts,
	}
	if err := w.backend.Execute(ctx, w.jobID, req); err != nil {
		return err
	}
	w.options = opts
	w.step = StepExecuting
	return nil
}

// Wait polls the job to a terminal status and performs the single terminal
// transition: Done when the import completed (even with row errors),
// Failed when it failed. A wait timeout leaves the wizard in Executing so
// the caller can wait again.
func (w *Wizard) Wait(ctx context.Context, opts client.WaitOptions) (*client.JobStatus, error) {
	if w.step != StepExecuting {
		return nil, fmt.Errorf("%w: cannot wait in step %s", ErrInvalidTransition, w.step)
	}
	status, err := w.backend.WaitForJob(ctx, w.jobID, opts)
	if err != nil {
		return nil, err
	}
	w.result = status
	if status.Status == model.StatusCompleted {
		w.step = StepDone
	} else {
		w.step = StepFailed
	}
	return status, nil
}
