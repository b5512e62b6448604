package domain

import "strings"

// cnpjWeights for the two check digits (Receita Federal algorithm).
var (
	cnpjWeightsFirst  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeightsSecond = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidateCNPJ checks a CNPJ (formatted or digits-only) against its
// check digits. Returns a validation error on malformed input.
func ValidateCNPJ(raw string) error {
	digits := onlyDigits(raw)
	if len(digits) != 14 {
		return &ErrValidation{Field: "cnpj", Message: "cnpj must have 14 digits"}
	}
	if allSameDigit(digits) {
		return &ErrValidation{Field: "cnpj", Message: "cnpj with repeated digits is invalid"}
	}
	if cnpjCheckDigit(digits[:12], cnpjWeightsFirst) != int(digits[12]-'0') ||
		cnpjCheckDigit(digits[:13], cnpjWeightsSecond) != int(digits[13]-'0') {
		return &ErrValidation{Field: "cnpj", Message: "cnpj check digits do not match"}
	}
	return nil
}

// FormatCNPJ renders a digits-only CNPJ as 00.000.000/0000-00.
// Input that is not 14 digits is returned unchanged.
func FormatCNPJ(raw string) string {
	d := onlyDigits(raw)
	if len(d) != 14 {
		return raw
	}
	return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}

func cnpjCheckDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func allSameDigit(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}
