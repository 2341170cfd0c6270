// Package auth guards the console's own HTTP surface. The operator gets a
// signed cookie bound to the stored session generation; the upstream
// bearer credential never leaves the server side.
package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opencirc/libconsole/internal/session"
)

// CookieName is the operator session cookie.
const CookieName = "console_token"

// Claims defines the operator cookie claims.
type Claims struct {
	Username   string `json:"username"`
	Generation int64  `json:"generation"`
	jwt.RegisteredClaims
}

// GenerateToken signs an operator cookie value for the given username under
// the current session generation.
func GenerateToken(secret []byte, username string, generation int64) (string, error) {
	claims := &Claims{
		Username:   username,
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses and validates an operator cookie value.
func ValidateToken(secret []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// SetCookie installs the operator cookie on a response.
func SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// ClearCookie removes the operator cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// Middleware rejects requests whose cookie is missing, invalid, or issued
// under an older session generation. A generation mismatch means the
// session was replaced or torn down since the cookie was signed.
func Middleware(secret []byte, sessions session.StoreProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil {
				http.Error(w, "Missing session", http.StatusUnauthorized)
				return
			}
			claims, err := ValidateToken(secret, cookie.Value)
			if err != nil {
				http.Error(w, "Invalid session", http.StatusUnauthorized)
				return
			}
			if claims.Generation != sessions.Generation() {
				http.Error(w, "Session expired", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
