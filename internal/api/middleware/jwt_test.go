package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var testSecret = []byte(strings.Repeat("k", 32))

func subjectHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(DashboardSubject(r.Context())))
	})
}

func TestGenerateDashboardToken(t *testing.T) {
	tok, exp, err := GenerateDashboardToken(testSecret, "wallboard", time.Hour)
	if err != nil {
		t.Fatalf("GenerateDashboardToken() error: %v", err)
	}
	if tok == "" {
		t.Fatal("expected a token")
	}
	if time.Until(exp) < 59*time.Minute {
		t.Fatalf("expiry %v too soon", exp)
	}

	_, exp, err = GenerateDashboardToken(testSecret, "wallboard", 0)
	if err != nil {
		t.Fatalf("GenerateDashboardToken() error: %v", err)
	}
	if !exp.IsZero() {
		t.Fatalf("expected no expiry for ttl 0, got %v", exp)
	}

	if _, _, err := GenerateDashboardToken(nil, "wallboard", 0); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, _, err := GenerateDashboardToken(testSecret, "", 0); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestRequireDashboardAuthDisabled(t *testing.T) {
	handler := RequireDashboardAuth(nil)(subjectHandler(t))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth disabled, got %d", rr.Code)
	}
}

func TestRequireDashboardAuth(t *testing.T) {
	good, _, err := GenerateDashboardToken(testSecret, "wallboard", time.Hour)
	if err != nil {
		t.Fatalf("GenerateDashboardToken() error: %v", err)
	}
	other, _, _ := GenerateDashboardToken([]byte(strings.Repeat("x", 32)), "wallboard", time.Hour)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, DashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "wallboard",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString(testSecret)
	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, DashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", Subject: "x"},
	}).SignedString(testSecret)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer header", "Bearer " + good, "", http.StatusOK},
		{"lowercase scheme", "bearer " + good, "", http.StatusOK},
		{"query token", "", good, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed header", "Token " + good, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + other, "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"foreign issuer", "Bearer " + foreign, "", http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", "", http.StatusUnauthorized},
	}

	handler := RequireDashboardAuth(testSecret)(subjectHandler(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/calls"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %q)", rr.Code, tt.want, rr.Body.String())
			}
			if tt.want == http.StatusOK && rr.Body.String() != "wallboard" {
				t.Fatalf("subject = %q, want wallboard", rr.Body.String())
			}
			if tt.want == http.StatusUnauthorized && rr.Header().Get("Content-Type") != "application/json" {
				t.Fatal("expected JSON error body")
			}
		})
	}
}
