package memory

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

type storyRepository struct {
	store *store
}

func copyStory(s *model.ReleaseStory) *model.ReleaseStory {
	copied := &model.ReleaseStory{
		ID:          s.ID,
		ReleaseID:   s.ReleaseID,
		Seq:         s.Seq,
		Title:       s.Title,
		Description: s.Description,
		Priority:    s.Priority,
		CreatedAt:   s.CreatedAt,
	}
	if s.Steps != nil {
		copied.Steps = make([]model.Step, len(s.Steps))
		copy(copied.Steps, s.Steps)
	}
	return copied
}

func (r *storyRepository) Put(ctx context.Context, s *model.ReleaseStory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored := copyStory(s)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.Seq == 0 {
		r.store.storySeq++
		stored.Seq = r.store.storySeq
	}
	r.store.stories[stored.ID] = stored
	return nil
}

func (r *storyRepository) Get(ctx context.Context, id types.StoryID) (*model.ReleaseStory, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, exists := r.store.stories[id]
	if !exists {
		return nil, goerr.Wrap(types.ErrNotFound, "release story not found", goerr.V(types.StoryIDKey, id))
	}
	return copyStory(s), nil
}

func (r *storyRepository) ListByRelease(ctx context.Context, releaseID types.ReleaseID) ([]*model.ReleaseStory, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.storiesOfRelease(releaseID), nil
}

// storiesOfRelease must be called with the store mutex held
func (s *store) storiesOfRelease(releaseID types.ReleaseID) []*model.ReleaseStory {
	result := []*model.ReleaseStory{}
	for _, story := range s.stories {
		if story.ReleaseID == releaseID {
			result = append(result, copyStory(story))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result
}
