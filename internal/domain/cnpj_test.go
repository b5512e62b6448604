package domain_test

import (
	"errors"
	"testing"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
)

func TestValidateCNPJ_Valid(t *testing.T) {
	cases := []string{
		"11222333000181",
		"11.222.333/0001-81", // formatting is stripped before validation
	}
	for _, cnpj := range cases {
		if err := domain.ValidateCNPJ(cnpj); err != nil {
			t.Errorf("ValidateCNPJ(%q): expected valid, got %v", cnpj, err)
		}
	}
}

func TestValidateCNPJ_Invalid(t *testing.T) {
	cases := []struct {
		name string
		cnpj string
	}{
		{"empty", ""},
		{"too short", "123"},
		{"too long", "112223330001811"},
		{"all same digit", "11111111111111"},
		{"wrong first check digit", "11222333000171"},
		{"wrong second check digit", "11222333000180"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := domain.ValidateCNPJ(tc.cnpj)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestFormatCNPJ(t *testing.T) {
	got := domain.FormatCNPJ("11222333000181")
	want := "11.222.333/0001-81"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
