package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"subquestion-challenge-service/internal/domain"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthenticator("s3cret", time.Hour)
	tok, err := a.Issue(7, 3, true)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Account() != (domain.AccountKey{TeamID: 3, UserID: 7}) || !claims.Admin {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejects(t *testing.T) {
	a := NewAuthenticator("s3cret", time.Hour)
	other := NewAuthenticator("other", time.Hour)
	foreign, _ := other.Issue(1, 0, false)

	expired := NewAuthenticator("s3cret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _ := expired.Issue(1, 0, false)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	anonymous, _ := a.Issue(0, 0, false)

	for name, tok := range map[string]string{
		"wrong secret": foreign,
		"expired":      stale,
		"alg none":     unsigned,
		"no user":      anonymous,
		"garbage":      "not-a-token",
	} {
		if _, err := a.Parse(tok); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMiddleware(t *testing.T) {
	a := NewAuthenticator("s3cret", time.Hour)
	player, _ := a.Issue(5, 0, false)
	admin, _ := a.Issue(1, 0, true)

	var seen *Claims
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		query   string
		want    int
	}{
		{"anonymous passes", a.Middleware(ok), "", "", http.StatusNoContent},
		{"bad token", a.Middleware(ok), "Bearer junk", "", http.StatusUnauthorized},
		{"malformed header", a.Middleware(ok), "Token abc", "", http.StatusUnauthorized},
		{"account required", a.Middleware(RequireAccount(ok)), "", "", http.StatusUnauthorized},
		{"account present", a.Middleware(RequireAccount(ok)), "Bearer " + player, "", http.StatusNoContent},
		{"admin required", a.Middleware(RequireAdmin(ok)), "Bearer " + player, "", http.StatusForbidden},
		{"admin anonymous", a.Middleware(RequireAdmin(ok)), "", "", http.StatusUnauthorized},
		{"admin present", a.Middleware(RequireAdmin(ok)), "Bearer " + admin, "", http.StatusNoContent},
		{"query token", a.Middleware(RequireAdmin(ok)), "", "?token=" + admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && tt.header != "" && seen == nil {
				t.Fatalf("claims not stored in context")
			}
		})
	}
}
