package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// SessionUseCase validates who may join a release's live test session
type SessionUseCase struct {
	repo interfaces.Repository
}

func NewSessionUseCase(repo interfaces.Repository) *SessionUseCase {
	return &SessionUseCase{repo: repo}
}

// JoinRelease verifies the release exists and the tester is a member of
// its owning project. Returns the release on success.
func (uc *SessionUseCase) JoinRelease(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (*model.Release, error) {
	return uc.AuthorizeRelease(ctx, releaseID, testerID)
}

// AuthorizeRelease checks that the user may read the release: it must
// exist and the user must be a member of its owning project. Shared by the
// realtime join path and the pull-style queries.
func (uc *SessionUseCase) AuthorizeRelease(ctx context.Context, releaseID types.ReleaseID, testerID types.UserID) (*model.Release, error) {
	release, err := uc.repo.Release().Get(ctx, releaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "release not found", goerr.V(types.ReleaseIDKey, releaseID))
	}

	project, err := uc.repo.Project().Get(ctx, release.ProjectID)
	if err != nil {
		return nil, goerr.Wrap(err, "project not found", goerr.V(types.ProjectIDKey, release.ProjectID))
	}
	if !project.HasMember(testerID) {
		return nil, goerr.Wrap(ErrNotProjectMember, "tester is not a member of the owning project",
			goerr.V(types.ProjectIDKey, project.ID), goerr.V(types.TesterIDKey, testerID))
	}

	return release, nil
}
