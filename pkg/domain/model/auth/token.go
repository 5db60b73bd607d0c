package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/types"
)

// TokenID identifies an access token
type TokenID string

// TokenSecret is the secret half of an access token. Redacted from logs.
type TokenSecret string

func (x TokenID) String() string     { return string(x) }
func (x TokenSecret) String() string { return string(x) }

// Token is an opaque access credential. Issuance lives outside the
// coordinator; this core only validates presented tokens against the
// repository.
type Token struct {
	ID        TokenID
	Secret    TokenSecret
	Sub       types.UserID // tester identity
	Name      string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewToken creates a token for the given tester with a random ID and secret
func NewToken(sub types.UserID, name, email string, ttl time.Duration) *Token {
	now := time.Now().UTC()
	return &Token{
		ID:        TokenID(uuid.NewString()),
		Secret:    TokenSecret(uuid.NewString()),
		Sub:       sub,
		Name:      name,
		Email:     email,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Validate checks that the token matches the presented secret and has not expired
func (t *Token) Validate(secret TokenSecret, now time.Time) error {
	if t.Secret != secret {
		return goerr.Wrap(types.ErrForbidden, "token secret mismatch")
	}
	if now.After(t.ExpiresAt) {
		return goerr.Wrap(types.ErrForbidden, "token expired")
	}
	return nil
}

type ctxTokenKey struct{}

// WithToken embeds the validated token into the context
func WithToken(ctx context.Context, token *Token) context.Context {
	return context.WithValue(ctx, ctxTokenKey{}, token)
}

// TokenFromContext extracts the validated token from the context
func TokenFromContext(ctx context.Context) (*Token, error) {
	token, ok := ctx.Value(ctxTokenKey{}).(*Token)
	if !ok || token == nil {
		return nil, goerr.Wrap(types.ErrForbidden, "no token in context")
	}
	return token, nil
}
