package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/model"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type projectRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

type projectDoc struct {
	ID        string
	Name      string
	MemberIDs []string
	CreatedAt time.Time
}

func (r *projectRepository) collection() string {
	return collectionName(r.collectionPrefix, "projects")
}

func toProjectDoc(p *model.Project) *projectDoc {
	doc := &projectDoc{
		ID:        p.ID.String(),
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
	}
	for _, id := range p.MemberIDs {
		doc.MemberIDs = append(doc.MemberIDs, id.String())
	}
	return doc
}

func (d *projectDoc) toModel() *model.Project {
	p := &model.Project{
		ID:        types.ProjectID(d.ID),
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
	}
	for _, id := range d.MemberIDs {
		p.MemberIDs = append(p.MemberIDs, types.UserID(id))
	}
	return p
}

func (r *projectRepository) Put(ctx context.Context, p *model.Project) error {
	doc := toProjectDoc(p)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := r.client.Collection(r.collection()).Doc(doc.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put project", goerr.V(types.ProjectIDKey, p.ID))
	}
	return nil
}

func (r *projectRepository) Get(ctx context.Context, id types.ProjectID) (*model.Project, error) {
	snap, err := r.client.Collection(r.collection()).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "project not found", goerr.V(types.ProjectIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get project", goerr.V(types.ProjectIDKey, id))
	}

	var doc projectDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode project", goerr.V(types.ProjectIDKey, id))
	}
	return doc.toModel(), nil
}

type userRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

type userDoc struct {
	ID    string
	Name  string
	Email string
}

func (r *userRepository) collection() string {
	return collectionName(r.collectionPrefix, "users")
}

func (r *userRepository) Put(ctx context.Context, u *model.User) error {
	doc := &userDoc{ID: u.ID.String(), Name: u.Name, Email: u.Email}
	if _, err := r.client.Collection(r.collection()).Doc(doc.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put user", goerr.V(types.TesterIDKey, u.ID))
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	snap, err := r.client.Collection(r.collection()).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "user not found", goerr.V(types.TesterIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(types.TesterIDKey, id))
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user", goerr.V(types.TesterIDKey, id))
	}
	return &model.User{ID: types.UserID(doc.ID), Name: doc.Name, Email: doc.Email}, nil
}
