package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type userIDContextKey struct{}

func userIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userID, _ := ctx.Value(userIDContextKey{}).(string)
	return userID
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// authenticator resolves the caller from an HS256 bearer token whose subject
// is the user id. With no secret configured, devUser is trusted for every call.
type authenticator struct {
	secret  []byte
	devUser string
}

func newAuthenticator(secret, devUser string) authenticator {
	return authenticator{
		secret:  []byte(strings.TrimSpace(secret)),
		devUser: strings.TrimSpace(devUser),
	}
}

func (a authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.resolve(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="blueprint-assistant"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

func (a authenticator) resolve(header string) (string, error) {
	token := bearerToken(header)
	if len(a.secret) > 0 && token != "" {
		return a.parse(token)
	}
	if len(a.secret) == 0 && a.devUser != "" {
		return a.devUser, nil
	}
	return "", errors.New("authentication required")
}

func (a authenticator) parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid or expired token")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	const bearerPrefix = "Bearer "
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
