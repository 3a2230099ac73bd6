package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewAuthenticator_EmptySecret(t *testing.T) {
	if _, err := NewAuthenticator(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	a, _ := NewAuthenticator("s3cret")
	token, err := a.GenerateJWT("alice", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := a.ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.Operator != "alice" || claims.Subject != "alice" {
		t.Errorf("claims = %+v", claims)
	}

	other, _ := NewAuthenticator("different")
	if _, err := other.ValidateJWT(token); err == nil {
		t.Error("token signed with another secret was accepted")
	}

	expired, _ := a.GenerateJWT("alice", -time.Minute)
	if _, err := a.ValidateJWT(expired); err == nil {
		t.Error("expired token was accepted")
	}
}

func TestAuthenticator_Middleware(t *testing.T) {
	a, _ := NewAuthenticator("s3cret")
	token, _ := a.GenerateJWT("bob", time.Hour)

	var seen string
	h := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			seen = claims.Operator
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer " + token, "", http.StatusNoContent},
		{"cookie", "", token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/start", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if seen != "bob" {
		t.Errorf("operator in context = %q", seen)
	}
}
