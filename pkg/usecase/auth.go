package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meirborowski/veriflow/pkg/domain/interfaces"
	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
)

const defaultTokenTTL = 24 * time.Hour

// AuthUseCaseInterface abstracts token validation so the controllers can
// run against either repository-backed tokens or the no-authn dev mode.
type AuthUseCaseInterface interface {
	ValidateToken(ctx context.Context, tokenID auth.TokenID, secret auth.TokenSecret) (*auth.Token, error)
	IssueToken(ctx context.Context, sub types.UserID, name, email string) (*auth.Token, error)
	Logout(ctx context.Context, tokenID auth.TokenID) error
	IsNoAuthn() bool
}

// AuthUseCase validates opaque bearer tokens against the repository
type AuthUseCase struct {
	repo interfaces.Repository
	ttl  time.Duration
}

var _ AuthUseCaseInterface = (*AuthUseCase)(nil)

func NewAuthUseCase(repo interfaces.Repository) *AuthUseCase {
	return &AuthUseCase{
		repo: repo,
		ttl:  defaultTokenTTL,
	}
}

func (uc *AuthUseCase) IsNoAuthn() bool { return false }

// IssueToken creates and stores a fresh token for the tester
func (uc *AuthUseCase) IssueToken(ctx context.Context, sub types.UserID, name, email string) (*auth.Token, error) {
	token := auth.NewToken(sub, name, email, uc.ttl)
	if err := uc.repo.PutToken(ctx, token); err != nil {
		return nil, goerr.Wrap(err, "failed to store token", goerr.V(types.TesterIDKey, sub))
	}

	logging.From(ctx).Info("token issued", "token_id", token.ID, "tester_id", sub)
	return token, nil
}

// ValidateToken checks the presented credential and returns the stored
// token on success. Expired tokens are deleted on sight.
func (uc *AuthUseCase) ValidateToken(ctx context.Context, tokenID auth.TokenID, secret auth.TokenSecret) (*auth.Token, error) {
	token, err := uc.repo.GetToken(ctx, tokenID)
	if err != nil {
		return nil, goerr.Wrap(types.ErrForbidden, "unknown token", goerr.V("token_id", tokenID))
	}

	now := time.Now().UTC()
	if err := token.Validate(secret, now); err != nil {
		if now.After(token.ExpiresAt) {
			if delErr := uc.repo.DeleteToken(ctx, tokenID); delErr != nil {
				logging.From(ctx).Warn("failed to delete expired token", "token_id", tokenID, "error", delErr)
			}
		}
		return nil, err
	}

	return token, nil
}

// Logout invalidates the token. Deleting an unknown token is not an error.
func (uc *AuthUseCase) Logout(ctx context.Context, tokenID auth.TokenID) error {
	if err := uc.repo.DeleteToken(ctx, tokenID); err != nil {
		return goerr.Wrap(err, "failed to delete token", goerr.V("token_id", tokenID))
	}
	return nil
}

// NoAuthnUseCase accepts any credential and fabricates a tester identity
// from the token ID. Development use only.
type NoAuthnUseCase struct{}

var _ AuthUseCaseInterface = (*NoAuthnUseCase)(nil)

func NewNoAuthnUseCase() *NoAuthnUseCase { return &NoAuthnUseCase{} }

func (uc *NoAuthnUseCase) IsNoAuthn() bool { return true }

func (uc *NoAuthnUseCase) ValidateToken(ctx context.Context, tokenID auth.TokenID, secret auth.TokenSecret) (*auth.Token, error) {
	if tokenID == "" {
		return nil, goerr.Wrap(types.ErrForbidden, "empty token")
	}
	now := time.Now().UTC()
	return &auth.Token{
		ID:        tokenID,
		Secret:    secret,
		Sub:       types.UserID(tokenID),
		Name:      string(tokenID),
		ExpiresAt: now.Add(defaultTokenTTL),
		CreatedAt: now,
	}, nil
}

func (uc *NoAuthnUseCase) IssueToken(ctx context.Context, sub types.UserID, name, email string) (*auth.Token, error) {
	return auth.NewToken(sub, name, email, defaultTokenTTL), nil
}

func (uc *NoAuthnUseCase) Logout(ctx context.Context, tokenID auth.TokenID) error { return nil }
