package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/repository/memory"
	"github.com/meirborowski/veriflow/pkg/usecase"
)

func TestSessionUseCase_JoinRelease(t *testing.T) {
	t.Run("project member may join", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		release, err := uc.Session.JoinRelease(ctx, testReleaseID, testTester)
		gt.NoError(t, err).Required()
		gt.Value(t, release.ID).Equal(testReleaseID)
	})

	t.Run("non-member is rejected", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		seedSession(t, repo, story("s-1", types.PriorityHigh, "step-1"))

		_, err := uc.Session.JoinRelease(ctx, testReleaseID, testOutsider)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrNotProjectMember)).True()
		gt.Bool(t, errors.Is(err, types.ErrForbidden)).True()
	})

	t.Run("unknown release", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo)
		ctx := context.Background()

		_, err := uc.Session.JoinRelease(ctx, "rel-missing", testTester)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrNotFound)).True()
	})
}
