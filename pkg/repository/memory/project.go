package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

type projectRepository struct {
	store *store
}

func copyProject(p *model.Project) *model.Project {
	copied := &model.Project{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
	}
	if p.MemberIDs != nil {
		copied.MemberIDs = make([]types.UserID, len(p.MemberIDs))
		copy(copied.MemberIDs, p.MemberIDs)
	}
	return copied
}

func (r *projectRepository) Put(ctx context.Context, p *model.Project) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored := copyProject(p)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.store.projects[stored.ID] = stored
	return nil
}

func (r *projectRepository) Get(ctx context.Context, id types.ProjectID) (*model.Project, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, exists := r.store.projects[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "project not found", goerr.V(types.ProjectIDKey, id))
	}
	return copyProject(p), nil
}

type userRepository struct {
	store *store
}

func (r *userRepository) Put(ctx context.Context, u *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *u
	r.store.users[u.ID] = &copied
	return nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, exists := r.store.users[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "user not found", goerr.V(types.TesterIDKey, id))
	}
	copied := *u
	return &copied, nil
}
