package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"veoqueue/internal/i18n"
)

const tokenIssuer = "veoqueue"

// TokenClaims identifies the operator calling the API.
type TokenClaims struct {
	jwt.RegisteredClaims
	Locale string `json:"locale,omitempty"`
}

type userKey string

const (
	userIDKey userKey = "user_id"
)

// SignJWT issues an HS256 token for subject valid for ttl. A zero ttl never
// expires.
func SignJWT(secret, subject, locale string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret is required")
	}
	now := time.Now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			Issuer:   tokenIssuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Locale: locale,
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyJWT parses token and checks its signature, issuer and expiry.
func VerifyJWT(secret, token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthJWT rejects requests without a valid bearer token.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing_authorization")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeUnauthorized(w, r, "invalid_authorization")
				return
			}
			claims, err := VerifyJWT(secret, strings.TrimSpace(parts[1]))
			if err != nil {
				writeUnauthorized(w, r, "invalid_token")
				return
			}
			ctx := ContextWithUserID(r.Context(), claims.Subject)
			if claims.Locale != "" {
				ctx = context.WithValue(ctx, LocaleKey, MatchLocale(claims.Locale, ""))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, code string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="veoqueue"`)
	WriteError(w, r, http.StatusUnauthorized, code, i18n.T(LocaleFromContext(r.Context()), i18n.MsgUnauthorized))
}

func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if strings.TrimSpace(userID) == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}
