package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type dashboardContextKey string

const dashboardSubjectKey dashboardContextKey = "dashboard_subject"

// tokenIssuer is the iss claim on every dashboard token.
const tokenIssuer = "remotecc"

// DashboardClaims are the claims carried by a dashboard bearer token.
type DashboardClaims struct {
	jwt.RegisteredClaims
}

// GenerateDashboardToken signs an HS256 token for subject. A ttl of zero
// issues a token without an expiry.
func GenerateDashboardToken(secret []byte, subject string, ttl time.Duration) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, errors.New("dashboard token secret is empty")
	}
	if subject == "" {
		return "", time.Time{}, errors.New("dashboard token subject is empty")
	}

	now := time.Now()
	claims := DashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   tokenIssuer,
			Subject:  subject,
		},
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// RequireDashboardAuth validates dashboard bearer tokens. The token is read
// from the Authorization header, or from the "token" query parameter since
// browsers cannot set headers on a WebSocket handshake. A nil secret turns
// authentication off.
func RequireDashboardAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}
			if tokenString == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims := &DashboardClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				slog.Debug("dashboard auth: invalid jwt", "error", err)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.Issuer != tokenIssuer || claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			ctx := context.WithValue(r.Context(), dashboardSubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the request. ok is false when an
// Authorization header is present but malformed.
func bearerToken(r *http.Request) (token string, ok bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	return r.URL.Query().Get("token"), true
}

// DashboardSubject returns the authenticated token subject, or "" when the
// request was not authenticated.
func DashboardSubject(ctx context.Context) string {
	s, _ := ctx.Value(dashboardSubjectKey).(string)
	return s
}
