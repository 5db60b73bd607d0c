package interfaces

import (
	"context"

	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// ReleaseRepository defines the interface for Release data access
type ReleaseRepository interface {
	Put(ctx context.Context, r *model.Release) error
	Get(ctx context.Context, id types.ReleaseID) (*model.Release, error)
	ListByProject(ctx context.Context, projectID types.ProjectID) ([]*model.Release, error)
}

// StoryRepository defines the interface for ReleaseStory snapshot access.
// Stories are written once when a release closes and read-only afterwards.
type StoryRepository interface {
	Put(ctx context.Context, s *model.ReleaseStory) error
	Get(ctx context.Context, id types.StoryID) (*model.ReleaseStory, error)

	// ListByRelease returns the release's stories ordered by snapshot
	// sequence number.
	ListByRelease(ctx context.Context, releaseID types.ReleaseID) ([]*model.ReleaseStory, error)
}
