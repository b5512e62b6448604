package service_test

import (
	"testing"

	"github.com/dmeireles/escolar-iam-go/internal/service"
)

func TestBcryptHasher(t *testing.T) {
	// min cost keeps the test fast
	h := service.NewBcryptHasher(4, nil)

	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal plaintext")
	}

	// salted: two hashes of the same input differ, both verify
	hash2, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if hash == hash2 {
		t.Error("expected different salts to yield different hashes")
	}

	if !h.Verify("s3cret", hash) || !h.Verify("s3cret", hash2) {
		t.Error("expected both hashes to verify")
	}
	if h.Verify("wrong", hash) {
		t.Error("expected wrong password to fail")
	}
}

func TestNewBcryptHasher_ClampsInvalidCost(t *testing.T) {
	// out-of-range costs must not panic Hash later
	for _, cost := range []int{-1, 0, 99} {
		h := service.NewBcryptHasher(cost, nil)
		if _, err := h.Hash("x"); err != nil {
			t.Errorf("cost %d: expected fallback to default, got %v", cost, err)
		}
	}
}
