// ABOUTME: Bearer token plumbing on both sides of the connection
// ABOUTME: Client token lookup and header building, server middleware checking the JWT

package auth

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// TokenEnv is the environment variable checked before any token file.
const TokenEnv = "NEXUS_TOKEN"

// LoadToken returns the client token. Priority: NEXUS_TOKEN env var >
// tokenFile > $XDG_CONFIG_HOME/nexus/token > ~/.config/nexus/token.
// An absent token is not an error; the backend may not require one.
func LoadToken(tokenFile string) string {
	if token := os.Getenv(TokenEnv); token != "" {
		return strings.TrimSpace(token)
	}

	if tokenFile == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return ""
			}
			configDir = filepath.Join(homeDir, ".config")
		}
		tokenFile = filepath.Join(configDir, "nexus", "token")
	}

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Header returns the handshake and request header carrying token, or an
// empty header when token is empty.
func Header(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

type userKey struct{}

// UserFromContext returns the user ID set by HTTPAuthMiddleware.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok
}

// HTTPAuthMiddleware rejects requests without a valid bearer token and
// records the token subject in the request context.
func HTTPAuthMiddleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
