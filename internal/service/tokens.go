package service

import (
	"fmt"
	"time"

	"github.com/dmeireles/escolar-iam-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "escolar-iam"

// JWTClaims carries the identity assertion inside access tokens.
type JWTClaims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	MasterID string `json:"masterId"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, time-bounded identity
// assertions. Stateless: nothing is persisted server-side, so every
// usecase can authorize without a session-store round trip.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service with an injected secret and TTL,
// never ambient globals, so tests stay isolated and secrets can rotate.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Generate signs an access token binding {email, role, masterId}.
func (s *TokenService) Generate(identity *domain.Identity) (string, error) {
	if identity == nil || identity.Email == "" || !identity.Role.Valid() || identity.MasterID == "" {
		return "", &domain.ErrValidation{Field: "identity", Message: "email, role and masterId are required"}
	}
	now := time.Now()
	claims := JWTClaims{
		Email:    identity.Email,
		Role:     identity.Role.String(),
		MasterID: identity.MasterID,
		Type:     "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    tokenIssuer,
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the embedded identity.
// Any failure surfaces as an authentication error.
func (s *TokenService) Verify(tokenString string) (*domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthenticated{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthenticated{Message: "invalid token"}
	}
	if claims.Type != "access" {
		return nil, &domain.ErrUnauthenticated{Message: "invalid token type"}
	}
	if claims.Issuer != tokenIssuer {
		return nil, &domain.ErrUnauthenticated{Message: "invalid token issuer"}
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, &domain.ErrUnauthenticated{Message: "invalid token role"}
	}

	return &domain.Identity{
		Email:    claims.Email,
		Role:     role,
		MasterID: claims.MasterID,
	}, nil
}
