package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
)

// Firestore is the persistent repository backend. Assignment, finalize and
// cleanup run inside Firestore transactions (serializable, retried on
// contention), which provides the mutual-exclusion discipline the
// coordinator requires across process instances sharing one database.
type Firestore struct {
	client    *firestore.Client
	project   *projectRepository
	user      *userRepository
	release   *releaseRepository
	story     *storyRepository
	execution *executionRepository
	tokens    *tokenRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes every collection name, used to isolate
// parallel test runs against a shared emulator.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.project.collectionPrefix = prefix
		f.user.collectionPrefix = prefix
		f.release.collectionPrefix = prefix
		f.story.collectionPrefix = prefix
		f.execution.collectionPrefix = prefix
		f.tokens.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	f := &Firestore{
		client:    client,
		project:   &projectRepository{client: client},
		user:      &userRepository{client: client},
		release:   &releaseRepository{client: client},
		story:     &storyRepository{client: client},
		execution: &executionRepository{client: client},
		tokens:    &tokenRepository{client: client},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Project() interfaces.ProjectRepository     { return f.project }
func (f *Firestore) User() interfaces.UserRepository           { return f.user }
func (f *Firestore) Release() interfaces.ReleaseRepository     { return f.release }
func (f *Firestore) Story() interfaces.StoryRepository         { return f.story }
func (f *Firestore) Execution() interfaces.ExecutionRepository { return f.execution }

func (f *Firestore) PutToken(ctx context.Context, token *auth.Token) error {
	return f.tokens.Put(ctx, token)
}

func (f *Firestore) GetToken(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error) {
	return f.tokens.Get(ctx, tokenID)
}

func (f *Firestore) DeleteToken(ctx context.Context, tokenID auth.TokenID) error {
	return f.tokens.Delete(ctx, tokenID)
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func collectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}
