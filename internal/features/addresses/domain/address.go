package domain

import (
	"errors"
	"unicode"
)

// ErrInvalidCEP is returned when the postal code is not exactly 8 digits.
var ErrInvalidCEP = errors.New("invalid CEP: 8 digits required")

// Address is the postal-code lookup result used to prefill shipment forms.
type Address struct {
	CEP          string `json:"cep"`
	Street       string `json:"logradouro"`
	Neighborhood string `json:"bairro"`
	City         string `json:"localidade"`
	State        string `json:"uf"`
}

// NormalizeCEP strips formatting and validates the postal code: exactly 8
// digits after removing separators.
func NormalizeCEP(raw string) (string, error) {
	digits := make([]rune, 0, 8)
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) != 8 {
		return "", ErrInvalidCEP
	}
	return string(digits), nil
}
