package ident

import (
	"errors"
	"fmt"
)

const (
	maxQuestionnaireType = 99
	maxTranche           = 9
	maxUniqueNumber      = 99_999_999_999

	// checkDigitModulus keeps the checksum within two digits. The check-digit
	// pair only catches transcription errors; it is not a security property.
	checkDigitModulus = 97
)

// ErrQidComponentOutOfRange is returned when a questionnaire id component
// does not fit its fixed-width slot.
var ErrQidComponentOutOfRange = errors.New("questionnaire id component out of range")

// BuildQid assembles a questionnaire id from its components:
// a 2-digit questionnaire type, a 1-digit tranche identifier, the 11-digit
// store-issued unique number and a trailing 2-digit checksum over the
// preceding digits.
func BuildQid(questionnaireType int, tranche int, uniqueNumber int64) (string, error) {
	if questionnaireType < 1 || questionnaireType > maxQuestionnaireType {
		return "", fmt.Errorf("%w: questionnaire type %d", ErrQidComponentOutOfRange, questionnaireType)
	}

	if tranche < 0 || tranche > maxTranche {
		return "", fmt.Errorf("%w: tranche %d", ErrQidComponentOutOfRange, tranche)
	}

	if uniqueNumber < 0 || uniqueNumber > maxUniqueNumber {
		return "", fmt.Errorf("%w: unique number %d", ErrQidComponentOutOfRange, uniqueNumber)
	}

	leading := fmt.Sprintf("%02d%01d%011d", questionnaireType, tranche, uniqueNumber)

	return fmt.Sprintf("%s%02d", leading, CheckDigits(leading)), nil
}

// CheckDigits computes the two-digit checksum for the leading digits of a
// questionnaire id: a position-weighted digit sum reduced modulo 97. Weights
// make transposed neighbours produce different checksums.
func CheckDigits(leading string) int {
	sum := 0
	for i, r := range leading {
		sum += (i + 1) * int(r-'0')
	}

	return sum % checkDigitModulus
}
