package handlers

import (
	"net/http/httptest"
	"testing"
)

func TestAllowOrigins(t *testing.T) {
	allow := AllowOrigins([]string{"http://localhost:3000", "https://*.example.com"})

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin header", "", true},
		{"listed", "http://localhost:3000", true},
		{"listed with other case", "HTTP://LOCALHOST:3000", true},
		{"wildcard subdomain", "https://panel.example.com", true},
		{"same host", "http://panel.internal:8080", true},
		{"other port", "http://localhost:4000", false},
		{"unlisted", "http://evil.example", false},
		{"wildcard needs a subdomain", "https://example.com", false},
		{"scheme matters", "http://panel.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://panel.internal:8080/api/feed", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := allow(r); got != tt.want {
				t.Errorf("allow(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}

	r := httptest.NewRequest("GET", "http://panel.internal:8080/api/feed", nil)
	r.Header.Set("Origin", "http://anything.test")
	if !AllowOrigins([]string{"*"})(r) {
		t.Error("\"*\" should accept every origin")
	}
}
