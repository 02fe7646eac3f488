package httpapi

import (
	"net/http"
	"testing"
)

func TestAuthRequiredOnProtectedPaths(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, "/v1/auth/me", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] == "" {
		t.Fatalf("expected error body, got %v", body)
	}

	resp = c.do(http.MethodGet, "/v1/auth/me", nil, map[string]string{
		"Authorization": "Basic dXNlcjpwYXNz",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong scheme, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/v1/auth/me", nil, bearerHeaders("not.a.jwt"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPublicPathsSkipAuth(t *testing.T) {
	c := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp := c.do(http.MethodGet, path, nil, nil)
		if resp.StatusCode == http.StatusUnauthorized {
			t.Fatalf("%s must not require auth", path)
		}
		resp.Body.Close()
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc123", "abc123", true},
		{"bearer abc123", "abc123", true},
		{"  Bearer   abc123  ", "abc123", true},
		{"", "", false},
		{"Bearer ", "", false},
		{"Basic abc123", "", false},
		{"abc123", "", false},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("header %q: expected %q, got %q err %v", tc.header, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("header %q: expected error", tc.header)
		}
	}
}
