package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/v1/auth/login":                  "/v1/auth/login",
		"/v1/auth/login?next=x":           "/v1/auth/login",
		"/v1/admin/roles/abc/permissions": "/v1/admin/roles/:id/permissions",
		"/v1/admin/admins/abc/roles":      "/v1/admin/admins/:id/roles",
		"/v1/admin/users/01HX2/block":     "/v1/admin/users/:id/block",
		"/v1/admin/permissions":           "/v1/admin/permissions",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
