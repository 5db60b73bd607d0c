package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/repository/memory"
	"github.com/meirborowski/veriflow/pkg/service/worker"
)

func seedAssigned(t *testing.T, repo *memory.Memory) *model.Execution {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	gt.NoError(t, repo.Project().Put(ctx, &model.Project{
		ID:        "proj-1",
		MemberIDs: []types.UserID{"tester-1"},
		CreatedAt: now,
	})).Required()
	closedAt := now
	gt.NoError(t, repo.Release().Put(ctx, &model.Release{
		ID:        "rel-1",
		ProjectID: "proj-1",
		Status:    types.ReleaseStatusClosed,
		CreatedAt: now,
		ClosedAt:  &closedAt,
	})).Required()
	gt.NoError(t, repo.Story().Put(ctx, &model.ReleaseStory{
		ID:        "s-1",
		ReleaseID: "rel-1",
		Seq:       1,
		Priority:  types.PriorityHigh,
		CreatedAt: now,
	})).Required()

	exec, _, err := repo.Execution().AssignNext(ctx, "rel-1", "tester-1")
	gt.NoError(t, err).Required()
	return exec
}

func TestOrphanReclaimer_Sweep(t *testing.T) {
	t.Run("reclaims executions older than the threshold", func(t *testing.T) {
		repo := memory.New()
		ctx := context.Background()
		exec := seedAssigned(t, repo)

		hooked := false
		reclaimer := worker.NewOrphanReclaimer(repo, time.Minute, 0,
			worker.WithReclaimHook(func(ctx context.Context) { hooked = true }))

		// Give StartedAt a moment to fall behind the zero threshold
		time.Sleep(5 * time.Millisecond)

		gt.NoError(t, reclaimer.Sweep(ctx)).Required()
		gt.Bool(t, hooked).True()

		_, err := repo.Execution().Get(ctx, exec.ID)
		gt.Error(t, err)

		// Story is assignable again
		again, _, err := repo.Execution().AssignNext(ctx, "rel-1", "tester-1")
		gt.NoError(t, err).Required()
		gt.Value(t, again.StoryID).Equal(types.StoryID("s-1"))
	})

	t.Run("leaves fresh executions alone", func(t *testing.T) {
		repo := memory.New()
		ctx := context.Background()
		exec := seedAssigned(t, repo)

		hooked := false
		reclaimer := worker.NewOrphanReclaimer(repo, time.Minute, time.Hour,
			worker.WithReclaimHook(func(ctx context.Context) { hooked = true }))

		gt.NoError(t, reclaimer.Sweep(ctx)).Required()
		gt.Bool(t, hooked).False()

		kept, err := repo.Execution().Get(ctx, exec.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, kept.Status).Equal(types.ExecutionStatusInProgress)
	})
}

func TestOrphanReclaimer_StartStop(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	exec := seedAssigned(t, repo)

	// Startup sweep runs immediately, before the first tick
	reclaimer := worker.NewOrphanReclaimer(repo, time.Hour, 0)
	gt.NoError(t, reclaimer.Start(ctx)).Required()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := repo.Execution().Get(ctx, exec.ID); err != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("startup sweep did not reclaim the execution")
		case <-time.After(10 * time.Millisecond):
		}
	}

	reclaimer.Stop()
}
