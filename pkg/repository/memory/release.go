package memory

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

type releaseRepository struct {
	store *store
}

func copyRelease(r *model.Release) *model.Release {
	return &model.Release{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Name:      r.Name,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		ClosedAt:  copyTime(r.ClosedAt),
	}
}

func (r *releaseRepository) Put(ctx context.Context, rel *model.Release) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored := copyRelease(rel)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.store.releases[stored.ID] = stored
	return nil
}

func (r *releaseRepository) Get(ctx context.Context, id types.ReleaseID) (*model.Release, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rel, exists := r.store.releases[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "release not found", goerr.V(types.ReleaseIDKey, id))
	}
	return copyRelease(rel), nil
}

func (r *releaseRepository) ListByProject(ctx context.Context, projectID types.ProjectID) ([]*model.Release, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := []*model.Release{}
	for _, rel := range r.store.releases {
		if rel.ProjectID == projectID {
			result = append(result, copyRelease(rel))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}
