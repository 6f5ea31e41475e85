package middlewareinternal

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/core"
	"github.com/Evgen-Mutagen/finledger/internal/types"
)

const TokenCookie = "jwt"

var errNoToken = errors.New("no session token")

// JWTAuthMiddleware rejects requests without a valid session token and stores
// the token's user id in the request context.
func JWTAuthMiddleware(authService core.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				logger.Debug("Failed to extract token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				unauthorized(w, r)
				return
			}

			userID, err := authService.ValidateToken(tokenString)
			if err != nil {
				logger.Warn("Invalid token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				unauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), types.UserIDKey, userID)
			logger.Debug("User authenticated",
				zap.Int64("user_id", userID),
				zap.String("path", r.URL.Path))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"error": "unauthorized"})
}

func extractToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(TokenCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errNoToken
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", errNoToken
	}

	return token, nil
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(types.UserIDKey).(int64)
	return userID, ok
}
