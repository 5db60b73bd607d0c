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

type releaseRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

type releaseDoc struct {
	ID        string
	ProjectID string
	Name      string
	Status    string
	CreatedAt time.Time
	ClosedAt  *time.Time
}

func (r *releaseRepository) collection() string {
	return collectionName(r.collectionPrefix, "releases")
}

func toReleaseDoc(rel *model.Release) *releaseDoc {
	return &releaseDoc{
		ID:        rel.ID.String(),
		ProjectID: rel.ProjectID.String(),
		Name:      rel.Name,
		Status:    rel.Status.String(),
		CreatedAt: rel.CreatedAt,
		ClosedAt:  rel.ClosedAt,
	}
}

func (d *releaseDoc) toModel() *model.Release {
	return &model.Release{
		ID:        types.ReleaseID(d.ID),
		ProjectID: types.ProjectID(d.ProjectID),
		Name:      d.Name,
		Status:    types.ReleaseStatus(d.Status),
		CreatedAt: d.CreatedAt,
		ClosedAt:  d.ClosedAt,
	}
}

func (r *releaseRepository) Put(ctx context.Context, rel *model.Release) error {
	doc := toReleaseDoc(rel)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := r.client.Collection(r.collection()).Doc(doc.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put release", goerr.V(types.ReleaseIDKey, rel.ID))
	}
	return nil
}

func (r *releaseRepository) Get(ctx context.Context, id types.ReleaseID) (*model.Release, error) {
	snap, err := r.client.Collection(r.collection()).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "release not found", goerr.V(types.ReleaseIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get release", goerr.V(types.ReleaseIDKey, id))
	}

	var doc releaseDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode release", goerr.V(types.ReleaseIDKey, id))
	}
	return doc.toModel(), nil
}

func (r *releaseRepository) ListByProject(ctx context.Context, projectID types.ProjectID) ([]*model.Release, error) {
	iter := r.client.Collection(r.collection()).
		Where("ProjectID", "==", projectID.String()).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	result := []*model.Release{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate releases", goerr.V(types.ProjectIDKey, projectID))
		}
		var doc releaseDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode release")
		}
		result = append(result, doc.toModel())
	}
	return result, nil
}
