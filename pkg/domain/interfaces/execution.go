package interfaces

import (
	"context"
	"time"

	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// ExecutionRepository defines the interface for Execution data access.
//
// AssignNext, PutStepResult, Finalize, CleanupTester and
// DeleteStaleInProgress are the only operations that change assignment
// eligibility. Each implementation must run them as a single transaction
// that re-validates its preconditions against current state, so that
// concurrent callers across connections and processes cannot race between
// check and write.
type ExecutionRepository interface {
	// AssignNext atomically picks the next eligible story of the release
	// for the tester and creates an in-progress execution for it.
	// Eligibility: the story has no execution with a status that blocks
	// assignment (in-progress, pass, cant-be-tested). Candidates are
	// ordered by priority rank, then snapshot sequence. Returns
	// (nil, nil, nil) when the pool is empty.
	//
	// Errors: types.ErrNotFound if the release does not exist,
	// types.ErrConflict if the release is not closed or the tester already
	// holds an in-progress execution for it.
	AssignNext(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (*model.Execution, *model.ReleaseStory, error)

	// Get retrieves an execution by ID
	Get(ctx context.Context, id types.ExecutionID) (*model.Execution, error)

	// PutStepResult upserts a step result on an execution. Re-validates
	// inside the transaction that the execution still exists and is
	// in-progress (types.ErrConflict otherwise).
	PutStepResult(ctx context.Context, executionID types.ExecutionID, result *model.StepResult) (*model.StepResult, error)

	// Finalize transitions an in-progress execution to a terminal verdict
	// and stamps CompletedAt. Re-validates in-progress state inside the
	// transaction (types.ErrConflict otherwise).
	Finalize(ctx context.Context, executionID types.ExecutionID, status types.ExecutionStatus, comment string) (*model.Execution, error)

	// CleanupTester hard-deletes the tester's in-progress execution for
	// the release, if any, together with its embedded step results.
	// Returns the unlocked story ID, or "" when the tester held nothing.
	// Idempotent.
	CleanupTester(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (types.StoryID, error)

	// DeleteStaleInProgress deletes every in-progress execution whose
	// StartedAt is older than the given instant and returns the deleted
	// IDs. Used by the orphan reclaimer.
	DeleteStaleInProgress(ctx context.Context, olderThan time.Time) ([]types.ExecutionID, error)

	// ListByRelease retrieves the release's executions, newest first,
	// with optional filtering and pagination.
	ListByRelease(ctx context.Context, releaseID types.ReleaseID, opts ...ListExecutionOption) ([]*model.Execution, error)
}

// ListExecutionOption is a functional option for filtering executions
type ListExecutionOption func(*listExecutionConfig)

type listExecutionConfig struct {
	storyID *types.StoryID
	status  *types.ExecutionStatus
	limit   int
	offset  int
}

// WithStory filters executions by release story
func WithStory(storyID types.StoryID) ListExecutionOption {
	return func(c *listExecutionConfig) {
		c.storyID = &storyID
	}
}

// WithStatus filters executions by status
func WithStatus(status types.ExecutionStatus) ListExecutionOption {
	return func(c *listExecutionConfig) {
		c.status = &status
	}
}

// WithLimit caps the number of returned executions (0 = no cap)
func WithLimit(limit int) ListExecutionOption {
	return func(c *listExecutionConfig) {
		c.limit = limit
	}
}

// WithOffset skips the first n executions
func WithOffset(offset int) ListExecutionOption {
	return func(c *listExecutionConfig) {
		c.offset = offset
	}
}

// BuildListExecutionConfig builds a listExecutionConfig from options
func BuildListExecutionConfig(opts ...ListExecutionOption) *listExecutionConfig {
	cfg := &listExecutionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// StoryID returns the story filter value, or nil if not set
func (c *listExecutionConfig) StoryID() *types.StoryID { return c.storyID }

// Status returns the status filter value, or nil if not set
func (c *listExecutionConfig) Status() *types.ExecutionStatus { return c.status }

// Limit returns the pagination limit (0 = no cap)
func (c *listExecutionConfig) Limit() int { return c.limit }

// Offset returns the pagination offset
func (c *listExecutionConfig) Offset() int { return c.offset }
