package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-passphrase", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-passphrase" {
		t.Fatal("hash equals plaintext")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("digest is not self-describing bcrypt: %s", hash)
	}
	if !VerifyPassword(hash, "s3cret-passphrase") {
		t.Fatal("expected verification to succeed")
	}
	if VerifyPassword(hash, "wrong-passphrase") {
		t.Fatal("expected verification to fail for wrong password")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword("", bcrypt.MinCost); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestHashPasswordClampsCost(t *testing.T) {
	hash, err := HashPassword("pw", 99)
	if err != nil {
		t.Fatalf("HashPassword with out-of-range cost: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != DefaultBcryptCost {
		t.Fatalf("expected default cost %d, got %d", DefaultBcryptCost, cost)
	}
}

func TestVerifyPasswordMalformedDigest(t *testing.T) {
	for _, digest := range []string{"", "not-a-digest", "$2y$zz$broken"} {
		if VerifyPassword(digest, "anything") {
			t.Fatalf("malformed digest %q verified", digest)
		}
	}
}

func TestDistinctSecretsDistinctHashes(t *testing.T) {
	h1, err := HashPassword("alpha", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("beta", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if VerifyPassword(h2, "alpha") || VerifyPassword(h1, "beta") {
		t.Fatal("cross-verification must fail")
	}
}
