package memory

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

type executionRepository struct {
	store *store
}

func copyExecution(e *model.Execution) *model.Execution {
	copied := &model.Execution{
		ID:          e.ID,
		ReleaseID:   e.ReleaseID,
		StoryID:     e.StoryID,
		TesterID:    e.TesterID,
		Attempt:     e.Attempt,
		Status:      e.Status,
		Comment:     e.Comment,
		StartedAt:   e.StartedAt,
		CompletedAt: copyTime(e.CompletedAt),
	}
	if e.StepResults != nil {
		copied.StepResults = make(map[types.StepID]*model.StepResult, len(e.StepResults))
		for id, sr := range e.StepResults {
			c := *sr
			copied.StepResults[id] = &c
		}
	}
	return copied
}

// AssignNext runs the whole selection under the store write lock: release
// checks, candidate computation, attempt count and insert are one critical
// section, so concurrent callers serialize and can never pick the same
// story.
func (r *executionRepository) AssignNext(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (*model.Execution, *model.ReleaseStory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	release, exists := r.store.releases[releaseID]
	if !exists {
		return nil, nil, goerr.Wrap(types.ErrNotFound, "release not found", goerr.V(types.ReleaseIDKey, releaseID))
	}
	if !release.IsClosed() {
		return nil, nil, goerr.Wrap(types.ErrConflict, "release must be closed to run tests",
			goerr.V(types.ReleaseIDKey, releaseID))
	}

	blocked := make(map[types.StoryID]bool)
	attempts := make(map[types.StoryID]int)
	for _, e := range r.store.executions {
		if e.ReleaseID != releaseID {
			continue
		}
		if e.IsInProgress() && e.TesterID == testerID {
			return nil, nil, goerr.Wrap(types.ErrConflict, "already have an in-progress execution",
				goerr.V(types.ReleaseIDKey, releaseID), goerr.V(types.TesterIDKey, testerID))
		}
		attempts[e.StoryID]++
		if e.Status.BlocksAssignment() {
			blocked[e.StoryID] = true
		}
	}

	var candidates []*model.ReleaseStory
	for _, story := range r.store.storiesOfRelease(releaseID) {
		if !blocked[story.ID] {
			candidates = append(candidates, story)
		}
	}
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority.Rank() != candidates[j].Priority.Rank() {
			return candidates[i].Priority.Rank() < candidates[j].Priority.Rank()
		}
		return candidates[i].Seq < candidates[j].Seq
	})
	picked := candidates[0]

	exec := &model.Execution{
		ID:          types.NewExecutionID(),
		ReleaseID:   releaseID,
		StoryID:     picked.ID,
		TesterID:    testerID,
		Attempt:     attempts[picked.ID] + 1,
		Status:      types.ExecutionStatusInProgress,
		StepResults: make(map[types.StepID]*model.StepResult),
		StartedAt:   time.Now().UTC(),
	}
	r.store.executions[exec.ID] = exec

	return copyExecution(exec), picked, nil
}

func (r *executionRepository) Get(ctx context.Context, id types.ExecutionID) (*model.Execution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, exists := r.store.executions[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "execution not found", goerr.V(types.ExecutionIDKey, id))
	}
	return copyExecution(e), nil
}

func (r *executionRepository) PutStepResult(ctx context.Context, executionID types.ExecutionID, result *model.StepResult) (*model.StepResult, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, exists := r.store.executions[executionID]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "execution not found", goerr.V(types.ExecutionIDKey, executionID))
	}
	if !e.IsInProgress() {
		return nil, goerr.Wrap(types.ErrConflict, "execution is not in progress",
			goerr.V(types.ExecutionIDKey, executionID), goerr.V("status", e.Status))
	}

	stored := *result
	stored.UpdatedAt = time.Now().UTC()
	if e.StepResults == nil {
		e.StepResults = make(map[types.StepID]*model.StepResult)
	}
	e.StepResults[stored.StepID] = &stored

	copied := stored
	return &copied, nil
}

func (r *executionRepository) Finalize(ctx context.Context, executionID types.ExecutionID, status types.ExecutionStatus, comment string) (*model.Execution, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, exists := r.store.executions[executionID]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "execution not found", goerr.V(types.ExecutionIDKey, executionID))
	}
	if !e.IsInProgress() {
		return nil, goerr.Wrap(types.ErrConflict, "execution is not in progress",
			goerr.V(types.ExecutionIDKey, executionID), goerr.V("status", e.Status))
	}
	if !status.IsFinal() {
		return nil, goerr.Wrap(types.ErrConflict, "invalid final status",
			goerr.V(types.ExecutionIDKey, executionID), goerr.V("status", status))
	}

	now := time.Now().UTC()
	e.Status = status
	e.Comment = comment
	e.CompletedAt = &now

	return copyExecution(e), nil
}

func (r *executionRepository) CleanupTester(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (types.StoryID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, e := range r.store.executions {
		if e.ReleaseID == releaseID && e.TesterID == testerID && e.IsInProgress() {
			delete(r.store.executions, id)
			return e.StoryID, nil
		}
	}
	return "", nil
}

func (r *executionRepository) DeleteStaleInProgress(ctx context.Context, olderThan time.Time) ([]types.ExecutionID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted []types.ExecutionID
	for id, e := range r.store.executions {
		if e.IsInProgress() && e.StartedAt.Before(olderThan) {
			delete(r.store.executions, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (r *executionRepository) ListByRelease(ctx context.Context, releaseID types.ReleaseID, opts ...interfaces.ListExecutionOption) ([]*model.Execution, error) {
	cfg := interfaces.BuildListExecutionConfig(opts...)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := []*model.Execution{}
	for _, e := range r.store.executions {
		if e.ReleaseID != releaseID {
			continue
		}
		if cfg.StoryID() != nil && e.StoryID != *cfg.StoryID() {
			continue
		}
		if cfg.Status() != nil && e.Status != *cfg.Status() {
			continue
		}
		result = append(result, copyExecution(e))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].ID < result[j].ID
	})

	if cfg.Offset() > 0 {
		if cfg.Offset() >= len(result) {
			return []*model.Execution{}, nil
		}
		result = result[cfg.Offset():]
	}
	if cfg.Limit() > 0 && cfg.Limit() < len(result) {
		result = result[:cfg.Limit()]
	}

	return result, nil
}
