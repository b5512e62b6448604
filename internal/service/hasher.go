package service

import (
	"time"

	"github.com/dmeireles/escolar-iam-go/internal/infra/observability"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost factor used when none is configured.
// Tunable via config, never via user input.
const DefaultBcryptCost = 12

// BcryptHasher implements domain.Hasher with salted bcrypt hashing.
// The cost is injected at construction so tests can use a cheap one.
type BcryptHasher struct {
	cost    int
	metrics *observability.Metrics
}

// NewBcryptHasher creates a hasher with the given cost factor. Costs
// outside bcrypt's valid range fall back to the default.
func NewBcryptHasher(cost int, metrics *observability.Metrics) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost, metrics: metrics}
}

// Hash returns the bcrypt hash of the plaintext. Salting makes the output
// non-deterministic across calls.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	start := time.Now()
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	if h.metrics != nil {
		h.metrics.RecordHashDuration(time.Since(start))
	}
	return string(hashed), nil
}

// Verify reports whether the plaintext matches the stored hash.
func (h *BcryptHasher) Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}
