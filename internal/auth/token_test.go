package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testTokenSecret = "unit-test-secret-0123456789abcdef"

func testCodec(t *testing.T, now func() time.Time) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testTokenSecret, "HS256", WithTokenClock(now))
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func TestTokenIssueAndVerify(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, func() time.Time { return base })

	token, expiresAt, err := codec.Issue("principal-1", KindAdmin, 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.Equal(base.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "principal-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Kind != KindAdmin {
		t.Fatalf("unexpected kind: %s", claims.Kind)
	}
	if claims.ID == "" {
		t.Fatal("expected jti claim")
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := testCodec(t, func() time.Time { return now })

	token, _, err := codec.Issue("principal-1", KindUser, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenTamperedSignature(t *testing.T) {
	codec := testCodec(t, time.Now)

	token, _, err := codec.Issue("principal-1", KindUser, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %s", token)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := codec.Verify(tampered); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}

	other, err := NewTokenCodec("another-secret-0123456789abcdefgh", "HS256")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	foreign, _, err := other.Issue("principal-1", KindUser, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(foreign); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature for foreign secret, got %v", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	codec := testCodec(t, time.Now)
	for _, token := range []string{"", "garbage", "a.b", "a.b.c"} {
		if _, err := codec.Verify(token); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("token %q: expected ErrTokenMalformed, got %v", token, err)
		}
	}
}

func TestTokenIssueValidation(t *testing.T) {
	codec := testCodec(t, time.Now)
	if _, _, err := codec.Issue("", KindUser, time.Minute); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, _, err := codec.Issue("p", Kind("robot"), time.Minute); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, _, err := codec.Issue("p", KindUser, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestNewTokenCodecValidation(t *testing.T) {
	if _, err := NewTokenCodec("", "HS256"); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewTokenCodec(testTokenSecret, "none"); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
	if _, err := NewTokenCodec(testTokenSecret, "HS512"); err != nil {
		t.Fatalf("HS512 should be supported: %v", err)
	}
}
