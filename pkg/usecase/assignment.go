package usecase

import (
	"context"

	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
)

// AssignedStory is the result of a successful work assignment: the created
// in-progress execution plus the story snapshot the tester should run.
type AssignedStory struct {
	Execution *model.Execution
	Story     *model.ReleaseStory
}

// AssignmentUseCase is the work assignment engine. All correctness-critical
// work (precondition checks, candidate locking, attempt counting, insert)
// happens atomically in the repository; this layer adds logging and the
// public result shape.
type AssignmentUseCase struct {
	repo interfaces.Repository
}

func NewAssignmentUseCase(repo interfaces.Repository) *AssignmentUseCase {
	return &AssignmentUseCase{repo: repo}
}

// AssignStory picks the next eligible story of the release for the tester.
// Returns (nil, nil) when the pool is empty; an empty pool is an outcome,
// not an error.
func (uc *AssignmentUseCase) AssignStory(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (*AssignedStory, error) {
	exec, story, err := uc.repo.Execution().AssignNext(ctx, releaseID, testerID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, nil
	}

	logging.From(ctx).Info("story assigned",
		"release_id", releaseID,
		"story_id", story.ID,
		"tester_id", testerID,
		"attempt", exec.Attempt,
	)

	return &AssignedStory{Execution: exec, Story: story}, nil
}

// CleanupTester deletes the tester's in-progress execution for the release,
// if any, and returns the unlocked story ID ("" when there was nothing to
// clean up). Idempotent; used on leave, disconnect and heartbeat timeout.
func (uc *AssignmentUseCase) CleanupTester(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (types.StoryID, error) {
	storyID, err := uc.repo.Execution().CleanupTester(ctx, releaseID, testerID)
	if err != nil {
		return "", err
	}
	if storyID != "" {
		logging.From(ctx).Info("story unlocked by cleanup",
			"release_id", releaseID,
			"story_id", storyID,
			"tester_id", testerID,
		)
	}
	return storyID, nil
}
