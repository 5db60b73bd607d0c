package interfaces

import (
	"context"

	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// ProjectRepository defines the interface for Project data access. The
// coordinator only consumes projects for membership checks; Put exists for
// seeding and tests.
type ProjectRepository interface {
	Put(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, id types.ProjectID) (*model.Project, error)
}

// UserRepository defines the interface for User data access
type UserRepository interface {
	Put(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id types.UserID) (*model.User, error)
}
