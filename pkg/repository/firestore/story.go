package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type storyRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

type stepDoc struct {
	ID          string
	Order       int
	Instruction string
}

type storyDoc struct {
	ID          string
	ReleaseID   string
	Seq         int
	Title       string
	Description string
	Priority    string
	Steps       []stepDoc
	CreatedAt   time.Time
}

func (r *storyRepository) collection() string {
	return collectionName(r.collectionPrefix, "release_stories")
}

func toStoryDoc(s *model.ReleaseStory) *storyDoc {
	doc := &storyDoc{
		ID:          s.ID.String(),
		ReleaseID:   s.ReleaseID.String(),
		Seq:         s.Seq,
		Title:       s.Title,
		Description: s.Description,
		Priority:    s.Priority.String(),
		CreatedAt:   s.CreatedAt,
	}
	for _, step := range s.Steps {
		doc.Steps = append(doc.Steps, stepDoc{
			ID:          step.ID.String(),
			Order:       step.Order,
			Instruction: step.Instruction,
		})
	}
	return doc
}

func (d *storyDoc) toModel() *model.ReleaseStory {
	s := &model.ReleaseStory{
		ID:          types.StoryID(d.ID),
		ReleaseID:   types.ReleaseID(d.ReleaseID),
		Seq:         d.Seq,
		Title:       d.Title,
		Description: d.Description,
		Priority:    types.Priority(d.Priority),
		CreatedAt:   d.CreatedAt,
	}
	for _, step := range d.Steps {
		s.Steps = append(s.Steps, model.Step{
			ID:          types.StepID(step.ID),
			Order:       step.Order,
			Instruction: step.Instruction,
		})
	}
	return s
}

func (r *storyRepository) Put(ctx context.Context, s *model.ReleaseStory) error {
	doc := toStoryDoc(s)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := r.client.Collection(r.collection()).Doc(doc.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put release story", goerr.V(types.StoryIDKey, s.ID))
	}
	return nil
}

func (r *storyRepository) Get(ctx context.Context, id types.StoryID) (*model.ReleaseStory, error) {
	snap, err := r.client.Collection(r.collection()).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "release story not found", goerr.V(types.StoryIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get release story", goerr.V(types.StoryIDKey, id))
	}

	var doc storyDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode release story", goerr.V(types.StoryIDKey, id))
	}
	return doc.toModel(), nil
}

func (r *storyRepository) ListByRelease(ctx context.Context, releaseID types.ReleaseID) ([]*model.ReleaseStory, error) {
	iter := r.client.Collection(r.collection()).
		Where("ReleaseID", "==", releaseID.String()).
		OrderBy("Seq", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	result := []*model.ReleaseStory{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate release stories", goerr.V(types.ReleaseIDKey, releaseID))
		}
		var doc storyDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode release story")
		}
		result = append(result, doc.toModel())
	}
	return result, nil
}
