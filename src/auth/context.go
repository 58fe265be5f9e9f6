package auth

import (
	"context"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const (
	UserKey contextKey = "user"

	UserHeader = "X-User-ID"
)

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserKey, userID)
}

func GetUserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(UserKey).(string)
	return user, ok && user != ""
}

// RequireUser resolves the caller from the X-User-ID header. When tokenHash is
// set, requests must also carry a bearer token matching that bcrypt hash.
func RequireUser(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash != "" {
				token := extractToken(r)
				if token == "" || bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
					logger.WithField("path", r.URL.Path).Warn("rejected request with invalid api token")
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}

			userID := strings.TrimSpace(r.Header.Get(UserHeader))
			if userID == "" {
				// browsers cannot set headers on websocket upgrades
				userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
			}
			if userID == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func extractToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return r.URL.Query().Get("token")
}
