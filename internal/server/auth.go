package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/studykit-go/internal/logging"
)

// DevUserID is the identity every request runs as when no API keys are
// configured.
const DevUserID = "local"

var (
	// errMissingToken is returned when a request carries no bearer token.
	errMissingToken = errors.New("authorization required")
	// errInvalidToken is returned for a token that maps to no user.
	errInvalidToken = errors.New("invalid token")
)

// Authenticator resolves the user behind a request. It is the seam to the
// external auth collaborator.
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, err error)
}

// KeyAuthenticator maps static bearer tokens to user ids. An empty map
// puts it in development mode: every request is DevUserID.
type KeyAuthenticator struct {
	keys map[string]string
}

// NewKeyAuthenticator returns a KeyAuthenticator over token→user keys.
func NewKeyAuthenticator(keys map[string]string) *KeyAuthenticator {
	return &KeyAuthenticator{keys: keys}
}

// Disabled reports whether the authenticator runs in development mode.
func (a *KeyAuthenticator) Disabled() bool { return len(a.keys) == 0 }

// Authenticate implements Authenticator. Tokens are compared in constant
// time and never logged.
func (a *KeyAuthenticator) Authenticate(r *http.Request) (string, error) {
	if a.Disabled() {
		return DevUserID, nil
	}
	token := bearerToken(r)
	if token == "" {
		return "", errMissingToken
	}
	for key, user := range a.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
			return user, nil
		}
	}
	return "", errInvalidToken
}

type userKey struct{}

// withUser stores the authenticated user id in ctx.
func withUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// userFromContext returns the authenticated user id, or "".
func userFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

// authMiddleware returns an HTTP middleware that resolves the caller with
// auth and stores the user id in the request context. The request logger
// is enriched with the user id.
//
// Protected routes must supply:
//
//	Authorization: Bearer <token>
//
// Requests that fail authentication receive 401 Unauthorized with a
// WWW-Authenticate: Bearer challenge. Token values are never logged.
func authMiddleware(auth Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		userID, err := auth.Authenticate(r)
		if err != nil {
			log.Warn("auth: rejected request",
				slog.String("path", r.URL.Path),
				slog.String("reason", err.Error()),
			)
			challenge := `Bearer realm="studykit"`
			if errors.Is(err, errInvalidToken) {
				challenge += ` error="invalid_token"`
			}
			w.Header().Set("WWW-Authenticate", challenge)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}

		ctx := logging.With(withUser(r.Context(), userID), slog.String("user_id", userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns an empty string if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return ""
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
