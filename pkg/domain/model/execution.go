package model

import (
	"time"

	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// StepResult is the recorded outcome of one step of an execution. Step
// results are embedded in their execution so they share its lifecycle:
// deleting the execution deletes them.
type StepResult struct {
	StepID    types.StepID     `json:"stepId"`
	Status    types.StepStatus `json:"status"`
	Comment   string           `json:"comment,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Execution represents one tester's attempt at one release story.
//
// Invariants maintained by the repository layer: at most one in-progress
// execution per (release, story) pair and at most one per (release, tester)
// pair at any time.
type Execution struct {
	ID          types.ExecutionID            `json:"id"`
	ReleaseID   types.ReleaseID              `json:"releaseId"`
	StoryID     types.StoryID                `json:"releaseStoryId"`
	TesterID    types.UserID                 `json:"testerId"`
	Attempt     int                          `json:"attempt"` // 1-based, recomputed from remaining rows on assignment
	Status      types.ExecutionStatus        `json:"status"`
	Comment     string                       `json:"comment,omitempty"`
	StepResults map[types.StepID]*StepResult `json:"stepResults"`
	StartedAt   time.Time                    `json:"startedAt"`
	CompletedAt *time.Time                   `json:"completedAt,omitempty"`
}

// IsInProgress reports whether the execution has not been finalized yet
func (e *Execution) IsInProgress() bool {
	return e.Status == types.ExecutionStatusInProgress
}

// OwnedBy reports whether the execution is assigned to the given tester
func (e *Execution) OwnedBy(testerID types.UserID) bool {
	return e.TesterID == testerID
}
