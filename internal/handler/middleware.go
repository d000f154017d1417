package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const identityKey contextKey = "identity"

// JWTAuthMiddleware validates Bearer tokens and injects the caller identity
// into the request context.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token d'authentification manquant")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Format de token invalide")
				return
			}

			identity, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the authenticated identity from context.
// Returns the zero Identity when the request was not authenticated.
func IdentityFromContext(ctx context.Context) domain.Identity {
	v, _ := ctx.Value(identityKey).(domain.Identity)
	return v
}
