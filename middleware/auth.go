package middleware

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"notesync/pkg/apperr"
	"notesync/pkg/logger"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserIDKey contextKey = "userID"

// AuthConfig selects the access-gated variant. With Required unset every
// request passes through anonymously.
type AuthConfig struct {
	Required  bool
	PublicKey *rsa.PublicKey
	Secret    []byte
}

// UserID returns the caller identity, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Required {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// For WebSockets, tokens are often passed in the query string
			// because the browser's WebSocket API doesn't support custom headers.
			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				authHeader := r.Header.Get("Authorization")
				tokenString = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			}

			if tokenString == "" {
				unauthorized(w, apperr.ErrNoToken)
				return
			}

			userID, err := cfg.Verify(tokenString)
			if err != nil {
				logger.Sugar.Infof("Invalid token: %v", err)
				unauthorized(w, apperr.New(apperr.Unauthorized, err.Error()))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// Verify checks the token signature and returns its sub claim.
func (cfg AuthConfig) Verify(tokenString string) (string, error) {
	var method string
	var key any
	switch {
	case cfg.PublicKey != nil:
		method, key = jwt.SigningMethodRS256.Alg(), cfg.PublicKey
	case len(cfg.Secret) > 0:
		method, key = jwt.SigningMethodHS256.Alg(), cfg.Secret
	default:
		return "", errors.New("server is not configured to validate tokens")
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{method}))
	if err != nil {
		return "", err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token is missing the sub claim")
	}
	return sub, nil
}

func unauthorized(w http.ResponseWriter, e *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	json.NewEncoder(w).Encode(e.Body())
}
