package ident

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// accessCodeAlphabet deliberately omits ambiguous characters (0/o, 1/l/i)
// because access codes are transcribed by respondents from paper.
const accessCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

const accessCodeLength = 16

// NewAccessCode issues a fresh random access code. Codes are independent of
// questionnaire ids and of each other; uniqueness across the system's lifetime
// is enforced by the store's unique constraint at insert time.
func NewAccessCode() (string, error) {
	alphabetSize := big.NewInt(int64(len(accessCodeAlphabet)))
	code := make([]byte, accessCodeLength)

	for i := range code {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generating access code: %w", err)
		}

		code[i] = accessCodeAlphabet[idx.Int64()]
	}

	return string(code), nil
}
