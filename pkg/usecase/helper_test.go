package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

const (
	testProjectID = types.ProjectID("proj-1")
	testReleaseID = types.ReleaseID("rel-1")
	testTester    = types.UserID("tester-1")
	testTester2   = types.UserID("tester-2")
	testOutsider  = types.UserID("outsider-1")
)

// seedSession loads a project with two members, a closed release and the
// given stories (Seq follows argument order)
func seedSession(t *testing.T, repo interfaces.Repository, stories ...*model.ReleaseStory) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	gt.NoError(t, repo.Project().Put(ctx, &model.Project{
		ID:        testProjectID,
		Name:      "Checkout",
		MemberIDs: []types.UserID{testTester, testTester2},
		CreatedAt: now,
	})).Required()

	gt.NoError(t, repo.User().Put(ctx, &model.User{
		ID:    testTester,
		Name:  "Alex",
		Email: "alex@example.com",
	})).Required()

	closedAt := now
	gt.NoError(t, repo.Release().Put(ctx, &model.Release{
		ID:        testReleaseID,
		ProjectID: testProjectID,
		Name:      "2026.08",
		Status:    types.ReleaseStatusClosed,
		CreatedAt: now,
		ClosedAt:  &closedAt,
	})).Required()

	for i, story := range stories {
		story.ReleaseID = testReleaseID
		story.Seq = i + 1
		story.CreatedAt = now
		gt.NoError(t, repo.Story().Put(ctx, story)).Required()
	}
}

func story(id string, priority types.Priority, stepIDs ...string) *model.ReleaseStory {
	steps := make([]model.Step, len(stepIDs))
	for i, sid := range stepIDs {
		steps[i] = model.Step{
			ID:          types.StepID(sid),
			Order:       i + 1,
			Instruction: "step " + sid,
		}
	}
	return &model.ReleaseStory{
		ID:       types.StoryID(id),
		Title:    "Story " + id,
		Priority: priority,
		Steps:    steps,
	}
}
