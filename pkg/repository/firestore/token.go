package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type tokenRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

type tokenDoc struct {
	ID        string
	Secret    string
	Sub       string
	Name      string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r *tokenRepository) collection() string {
	return collectionName(r.collectionPrefix, "tokens")
}

func (r *tokenRepository) Put(ctx context.Context, token *auth.Token) error {
	doc := &tokenDoc{
		ID:        token.ID.String(),
		Secret:    token.Secret.String(),
		Sub:       token.Sub.String(),
		Name:      token.Name,
		Email:     token.Email,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	}
	if _, err := r.client.Collection(r.collection()).Doc(doc.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put token")
	}
	return nil
}

func (r *tokenRepository) Get(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error) {
	snap, err := r.client.Collection(r.collection()).Doc(tokenID.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "token not found")
		}
		return nil, goerr.Wrap(err, "failed to get token")
	}

	var doc tokenDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode token")
	}
	return &auth.Token{
		ID:        auth.TokenID(doc.ID),
		Secret:    auth.TokenSecret(doc.Secret),
		Sub:       types.UserID(doc.Sub),
		Name:      doc.Name,
		Email:     doc.Email,
		ExpiresAt: doc.ExpiresAt,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (r *tokenRepository) Delete(ctx context.Context, tokenID auth.TokenID) error {
	if _, err := r.client.Collection(r.collection()).Doc(tokenID.String()).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete token")
	}
	return nil
}
