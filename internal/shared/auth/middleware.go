package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Moosv/simplefleet/internal/shared/config"
	"github.com/Moosv/simplefleet/internal/shared/types"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
)

// Session is the authenticated principal extracted from JWT claims.
// MetadataRole is the role stored in the identity account's metadata,
// one of the two role sources consulted by the resolver; it may lag
// behind the driver profile's role after a partial role update.
type Session struct {
	AccountID    types.ID `json:"sub"`
	Email        string   `json:"email"`
	MetadataRole string   `json:"role"`
}

// Claims extends JWT claims with SimpleFleet session data
type Claims struct {
	jwt.RegisteredClaims
	Email        string `json:"email"`
	MetadataRole string `json:"role,omitempty"`
}

// IssueToken creates a signed session token for an account.
func IssueToken(cfg config.AuthConfig, accountID types.ID, email, metadataRole string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.TokenTTLMinutes) * time.Minute)),
		},
		Email:        email,
		MetadataRole: metadataRole,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// Middleware creates JWT authentication middleware
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})

			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			session := &Session{
				AccountID:    types.ID(claims.Subject),
				Email:        claims.Email,
				MetadataRole: claims.MetadataRole,
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the session from request context
func GetSession(ctx context.Context) *Session {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return session
}

// WithSession returns a context carrying the given session. Used by
// tests and by the change-feed watcher when acting on behalf of the
// system.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
