package http

import (
	"net/http"
	"strings"

	"github.com/meirborowski/veriflow/pkg/domain/model/auth"
)

// authMiddleware validates the bearer credential on protected requests.
// The credential is "<token-id>:<secret>", the same shape the realtime
// gateway accepts.
func authMiddleware(authUC AuthUseCase) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			id, secret, ok := strings.Cut(strings.TrimPrefix(header, "Bearer "), ":")
			if !ok {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			token, err := authUC.ValidateToken(r.Context(), auth.TokenID(id), auth.TokenSecret(secret))
			if err != nil {
				http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
				return
			}

			ctx := auth.WithToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
