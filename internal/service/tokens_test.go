package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/service"

	"github.com/google/uuid"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := service.NewTokenService("test-secret", time.Minute)
	identity := &domain.Identity{
		Email:    "owner@school.com",
		Role:     domain.RoleMaster,
		MasterID: uuid.NewString(),
	}

	token, err := svc.Generate(identity)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Email != identity.Email {
		t.Errorf("expected email %q, got %q", identity.Email, got.Email)
	}
	if got.Role != identity.Role {
		t.Errorf("expected role %s, got %s", identity.Role, got.Role)
	}
	if got.MasterID != identity.MasterID {
		t.Errorf("expected masterId %q, got %q", identity.MasterID, got.MasterID)
	}
}

func TestTokenService_GenerateRejectsIncompleteIdentity(t *testing.T) {
	svc := service.NewTokenService("test-secret", time.Minute)

	cases := []*domain.Identity{
		nil,
		{Role: domain.RoleMaster, MasterID: uuid.NewString()},
		{Email: "a@b.com", MasterID: uuid.NewString()},
		{Email: "a@b.com", Role: domain.RoleMaster},
	}
	for i, identity := range cases {
		if _, err := svc.Generate(identity); err == nil {
			t.Errorf("case %d: expected error, got nil", i)
		}
	}
}

func TestTokenService_VerifyRejectsExpired(t *testing.T) {
	svc := service.NewTokenService("test-secret", -time.Minute)
	token, err := svc.Generate(&domain.Identity{
		Email:    "a@b.com",
		Role:     domain.RoleStudent,
		MasterID: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err = svc.Verify(token)
	var unauthenticated *domain.ErrUnauthenticated
	if !errors.As(err, &unauthenticated) {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
}

func TestTokenService_VerifyRejectsWrongSecret(t *testing.T) {
	issuer := service.NewTokenService("secret-a", time.Minute)
	verifier := service.NewTokenService("secret-b", time.Minute)

	token, err := issuer.Generate(&domain.Identity{
		Email:    "a@b.com",
		Role:     domain.RoleStudent,
		MasterID: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected error for wrong secret, got nil")
	}
}

func TestTokenService_VerifyRejectsGarbage(t *testing.T) {
	svc := service.NewTokenService("test-secret", time.Minute)
	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := svc.Verify(token); err == nil {
			t.Errorf("Verify(%q): expected error, got nil", token)
		}
	}
}
