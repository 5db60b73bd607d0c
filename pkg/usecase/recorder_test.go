package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/repository/memory"
	"github.com/meirborowski/veriflow/pkg/usecase"
)

type fakeBugReporter struct {
	filed chan *model.BugReport
}

func newFakeBugReporter() *fakeBugReporter {
	return &fakeBugReporter{filed: make(chan *model.BugReport, 1)}
}

func (f *fakeBugReporter) FileBug(ctx context.Context, report *model.BugReport) error {
	f.filed <- report
	return nil
}

func TestRecorderUseCase_UpdateStep(t *testing.T) {
	t.Run("records and revises a step outcome", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1", "step-2"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()
		gt.Value(t, assigned).NotNil()

		owner, result, err := uc.Recorder.UpdateStep(ctx, assigned.Execution.ID, "step-1", types.StepStatusFail, "button missing", testTester)
		gt.NoError(t, err).Required()
		gt.Value(t, result.Status).Equal(types.StepStatusFail)
		gt.Value(t, owner.StoryID).Equal(types.StoryID("s-1"))

		_, result, err = uc.Recorder.UpdateStep(ctx, assigned.Execution.ID, "step-1", types.StepStatusPass, "", testTester)
		gt.NoError(t, err).Required()
		gt.Value(t, result.Status).Equal(types.StepStatusPass)

		exec, err := uc.Dashboard.GetExecutionDetail(ctx, assigned.Execution.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, len(exec.Execution.StepResults)).Equal(1)
	})

	t.Run("rejects another tester's execution", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()

		_, _, err = uc.Recorder.UpdateStep(ctx, assigned.Execution.ID, "step-1", types.StepStatusPass, "", testTester2)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrNotYourExecution)).True()
		gt.Bool(t, errors.Is(err, types.ErrForbidden)).True()
	})

	t.Run("rejects a step outside the story", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()

		_, _, err = uc.Recorder.UpdateStep(ctx, assigned.Execution.ID, "step-99", types.StepStatusPass, "", testTester)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrStepNotFound)).True()
	})

	t.Run("rejects invalid step status", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()

		_, _, err = uc.Recorder.UpdateStep(ctx, assigned.Execution.ID, "step-1", "maybe", "", testTester)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrBadRequest)).True()
	})

	t.Run("rejects finalized execution", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()
		_, err = uc.Recorder.SubmitResult(ctx, assigned.Execution.ID, types.ExecutionStatusPass, "", testTester, nil)
		gt.NoError(t, err).Required()

		_, _, err = uc.Recorder.UpdateStep(ctx, assigned.Execution.ID, "step-1", types.StepStatusPass, "", testTester)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrNotInProgress)).True()
	})
}

func TestRecorderUseCase_SubmitResult(t *testing.T) {
	t.Run("finalizes with a terminal verdict", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()

		finalized, err := uc.Recorder.SubmitResult(ctx, assigned.Execution.ID, types.ExecutionStatusPass, "done", testTester, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, finalized.Status).Equal(types.ExecutionStatusPass)
		gt.Value(t, finalized.Comment).Equal("done")
		gt.Value(t, finalized.CompletedAt).NotNil()
	})

	t.Run("rejects non-terminal verdict", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()

		_, err = uc.Recorder.SubmitResult(ctx, assigned.Execution.ID, types.ExecutionStatusInProgress, "", testTester, nil)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrInvalidVerdict)).True()
	})

	t.Run("rejects double submission", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()
		_, err = uc.Recorder.SubmitResult(ctx, assigned.Execution.ID, types.ExecutionStatusPass, "", testTester, nil)
		gt.NoError(t, err).Required()

		_, err = uc.Recorder.SubmitResult(ctx, assigned.Execution.ID, types.ExecutionStatusFail, "", testTester, nil)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrNotInProgress)).True()
	})

	t.Run("forwards bug report on fail verdict", func(t *testing.T) {
		repo := memory.New()
		reporter := newFakeBugReporter()
		uc := usecase.New(repo, usecase.WithBugReporter(reporter))
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()

		bug := &model.BugReport{Title: "checkout broken", Description: "500 on submit"}
		_, err = uc.Recorder.SubmitResult(ctx, assigned.Execution.ID, types.ExecutionStatusFail, "", testTester, bug)
		gt.NoError(t, err).Required()

		select {
		case filed := <-reporter.filed:
			gt.Value(t, filed.Title).Equal("checkout broken")
			gt.Value(t, filed.ExecutionID).Equal(assigned.Execution.ID)
			gt.Value(t, filed.StoryID).Equal(types.StoryID("s-1"))
			gt.Value(t, filed.ReporterID).Equal(testTester)
		case <-time.After(time.Second):
			t.Fatal("bug report was not filed")
		}
	})

	t.Run("ignores bug report on pass verdict", func(t *testing.T) {
		repo := memory.New()
		reporter := newFakeBugReporter()
		uc := usecase.New(repo, usecase.WithBugReporter(reporter))
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		assigned, err := uc.Assignment.AssignStory(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()

		bug := &model.BugReport{Title: "not really a bug"}
		_, err = uc.Recorder.SubmitResult(ctx, assigned.Execution.ID, types.ExecutionStatusPass, "", testTester, bug)
		gt.NoError(t, err).Required()

		select {
		case <-reporter.filed:
			t.Fatal("bug report filed for a pass verdict")
		case <-time.After(50 * time.Millisecond):
		}
	})
}
