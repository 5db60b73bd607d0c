package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/utils/async"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
)

// RecorderUseCase records per-step outcomes and final verdicts of
// executions, validating ownership and execution state.
type RecorderUseCase struct {
	repo        interfaces.Repository
	bugReporter interfaces.BugReporter
}

func NewRecorderUseCase(repo interfaces.Repository, bugReporter interfaces.BugReporter) *RecorderUseCase {
	return &RecorderUseCase{
		repo:        repo,
		bugReporter: bugReporter,
	}
}

// checkOwnership loads the execution and validates that it exists, belongs
// to the caller and is still in progress.
func (uc *RecorderUseCase) checkOwnership(ctx context.Context, executionID types.ExecutionID, byTesterID types.UserID) (*model.Execution, error) {
	exec, err := uc.repo.Execution().Get(ctx, executionID)
	if err != nil {
		return nil, goerr.Wrap(err, "execution not found", goerr.V(types.ExecutionIDKey, executionID))
	}
	if !exec.OwnedBy(byTesterID) {
		return nil, goerr.Wrap(ErrNotYourExecution, "execution belongs to another tester",
			goerr.V(types.ExecutionIDKey, executionID), goerr.V(types.TesterIDKey, byTesterID))
	}
	if !exec.IsInProgress() {
		return nil, goerr.Wrap(ErrNotInProgress, "execution already finalized",
			goerr.V(types.ExecutionIDKey, executionID), goerr.V("status", exec.Status))
	}
	return exec, nil
}

// UpdateStep upserts the outcome of one step. A tester may revise a step's
// status any number of times before submitting the final verdict. Returns
// the owning execution alongside the stored result.
func (uc *RecorderUseCase) UpdateStep(ctx context.Context, executionID types.ExecutionID, stepID types.StepID, status types.StepStatus, comment string, byTesterID types.UserID) (*model.Execution, *model.StepResult, error) {
	if !status.IsValid() {
		return nil, nil, goerr.Wrap(types.ErrBadRequest, "invalid step status", goerr.V("status", status))
	}

	exec, err := uc.checkOwnership(ctx, executionID, byTesterID)
	if err != nil {
		return nil, nil, err
	}

	story, err := uc.repo.Story().Get(ctx, exec.StoryID)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to get release story", goerr.V(types.StoryIDKey, exec.StoryID))
	}
	if story.Step(stepID) == nil {
		return nil, nil, goerr.Wrap(ErrStepNotFound, "step does not belong to the execution's story",
			goerr.V(types.ExecutionIDKey, executionID), goerr.V(types.StepIDKey, stepID))
	}

	// The repository re-validates the in-progress state inside its
	// transaction, so a concurrent finalize cannot slip a step in.
	result, err := uc.repo.Execution().PutStepResult(ctx, executionID, &model.StepResult{
		StepID:  stepID,
		Status:  status,
		Comment: comment,
	})
	if err != nil {
		return nil, nil, err
	}

	return exec, result, nil
}

// SubmitResult finalizes an execution with a terminal verdict. This is the
// only transition out of in-progress short of cleanup deletion. An optional
// bug report accompanying a fail verdict is forwarded to the external bug
// reporter after the execution is durably finalized.
func (uc *RecorderUseCase) SubmitResult(ctx context.Context, executionID types.ExecutionID, status types.ExecutionStatus, comment string, byTesterID types.UserID, bug *model.BugReport) (*model.Execution, error) {
	if _, err := uc.checkOwnership(ctx, executionID, byTesterID); err != nil {
		return nil, err
	}
	if !status.IsFinal() {
		return nil, goerr.Wrap(ErrInvalidVerdict, "verdict must be terminal",
			goerr.V(types.ExecutionIDKey, executionID), goerr.V("status", status))
	}

	finalized, err := uc.repo.Execution().Finalize(ctx, executionID, status, comment)
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Info("execution finalized",
		"execution_id", finalized.ID,
		"story_id", finalized.StoryID,
		"tester_id", finalized.TesterID,
		"status", finalized.Status,
	)

	if bug != nil && status == types.ExecutionStatusFail && uc.bugReporter != nil {
		report := *bug
		report.ExecutionID = finalized.ID
		report.StoryID = finalized.StoryID
		report.ReporterID = byTesterID
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.bugReporter.FileBug(ctx, &report)
		})
	}

	return finalized, nil
}
