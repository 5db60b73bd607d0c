package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/repository/memory"
	"github.com/meirborowski/veriflow/pkg/usecase"
)

func TestAuthUseCase(t *testing.T) {
	t.Run("issue and validate", func(t *testing.T) {
		repo := memory.New()
		authUC := usecase.NewAuthUseCase(repo)
		ctx := context.Background()

		token, err := authUC.IssueToken(ctx, "tester-1", "Alex", "alex@example.com")
		gt.NoError(t, err).Required()
		gt.Value(t, token.Sub).Equal(types.UserID("tester-1"))

		validated, err := authUC.ValidateToken(ctx, token.ID, token.Secret)
		gt.NoError(t, err).Required()
		gt.Value(t, validated.Sub).Equal(types.UserID("tester-1"))
		gt.Value(t, validated.Name).Equal("Alex")
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		repo := memory.New()
		authUC := usecase.NewAuthUseCase(repo)
		ctx := context.Background()

		token, err := authUC.IssueToken(ctx, "tester-1", "Alex", "alex@example.com")
		gt.NoError(t, err).Required()

		_, err = authUC.ValidateToken(ctx, token.ID, "wrong-secret")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrForbidden)).True()
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		repo := memory.New()
		authUC := usecase.NewAuthUseCase(repo)
		ctx := context.Background()

		_, err := authUC.ValidateToken(ctx, "no-such-token", "whatever")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrForbidden)).True()
	})

	t.Run("logout invalidates the token", func(t *testing.T) {
		repo := memory.New()
		authUC := usecase.NewAuthUseCase(repo)
		ctx := context.Background()

		token, err := authUC.IssueToken(ctx, "tester-1", "Alex", "alex@example.com")
		gt.NoError(t, err).Required()

		gt.NoError(t, authUC.Logout(ctx, token.ID)).Required()

		_, err = authUC.ValidateToken(ctx, token.ID, token.Secret)
		gt.Error(t, err)
	})

	t.Run("expired token is rejected and removed", func(t *testing.T) {
		repo := memory.New()
		authUC := usecase.NewAuthUseCase(repo)
		ctx := context.Background()

		expired := auth.NewToken("tester-1", "Alex", "alex@example.com", -1)
		gt.NoError(t, repo.PutToken(ctx, expired)).Required()

		_, err := authUC.ValidateToken(ctx, expired.ID, expired.Secret)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrForbidden)).True()

		// The expired row was deleted on sight
		_, err = repo.GetToken(ctx, expired.ID)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrNotFound)).True()
	})
}

func TestNoAuthnUseCase(t *testing.T) {
	authUC := usecase.NewNoAuthnUseCase()
	ctx := context.Background()

	gt.Bool(t, authUC.IsNoAuthn()).True()

	token, err := authUC.ValidateToken(ctx, "dev-user", "")
	gt.NoError(t, err).Required()
	gt.Value(t, token.Sub).Equal(types.UserID("dev-user"))

	_, err = authUC.ValidateToken(ctx, "", "")
	gt.Error(t, err)
}
