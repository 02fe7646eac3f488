package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	digest, err := HashPassword("s3cret-passphrase")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$") {
		t.Fatalf("unexpected digest format: %s", digest)
	}
	if !VerifyPassword("s3cret-passphrase", digest) {
		t.Fatal("expected verification to succeed")
	}
	if VerifyPassword("wrong-passphrase", digest) {
		t.Fatal("expected verification to fail")
	}
}

func TestHashPasswordSaltsIndependently(t *testing.T) {
	first, err := HashPassword("same-plaintext")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := HashPassword("same-plaintext")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same plaintext must differ")
	}
	if !VerifyPassword("same-plaintext", first) || !VerifyPassword("same-plaintext", second) {
		t.Fatal("both digests must verify")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyPasswordMalformedDigest(t *testing.T) {
	cases := []string{
		"",
		"plain-text",
		"$argon2id$v=19$m=65536,t=2,p=1$not-base64!!$also-not",
		"$bcrypt$v=19$m=65536,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=2,p=1$$",
	}
	for _, digest := range cases {
		if VerifyPassword("anything", digest) {
			t.Fatalf("malformed digest verified: %q", digest)
		}
	}
}
