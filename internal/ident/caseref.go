package ident

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/censusrm/caseprocessor/internal/ident/fpe"
)

const (
	lowestCaseRef  = 10_000_000
	highestCaseRef = 99_999_999
)

// ErrSequenceOutOfDomain is returned when a sequence number lies outside the
// domain of the case-ref permutation.
var ErrSequenceOutOfDomain = errors.New("sequence number outside case ref domain")

// caseRefModulus subtracts one more than the natural span because 89 999 999
// is prime and the Feistel permutation requires a composite modulus.
var caseRefModulus = big.NewInt(highestCaseRef - lowestCaseRef - 1)

// CaseRefGenerator maps monotonically increasing sequence numbers to 8-digit
// case references in [10 000 000, 99 999 999]. The mapping is a keyed
// bijection: no two sequence numbers ever produce the same reference, and the
// output is not trivially predictable from the sequence number.
type CaseRefGenerator struct {
	cipher *fpe.Cipher
}

// NewCaseRefGenerator builds the generator, validating the cipher at
// construction time. A failure here is a non-recoverable configuration error
// and must abort process startup rather than being retried per message.
func NewCaseRefGenerator(key, tweak []byte) (*CaseRefGenerator, error) {
	cipher, err := fpe.NewCipher(caseRefModulus, key, tweak)
	if err != nil {
		return nil, fmt.Errorf("initialising case ref cipher: %w", err)
	}

	return &CaseRefGenerator{cipher: cipher}, nil
}

// CaseRef derives the case reference for a sequence number. It is
// deterministic: the same sequence number always yields the same reference,
// so a reference is stamped exactly once at case creation and never
// recomputed.
func (g *CaseRefGenerator) CaseRef(sequenceNumber int64) (int64, error) {
	if sequenceNumber < 0 || sequenceNumber >= caseRefModulus.Int64() {
		return 0, fmt.Errorf("%w: %d", ErrSequenceOutOfDomain, sequenceNumber)
	}

	encrypted, err := g.cipher.Encrypt(big.NewInt(sequenceNumber))
	if err != nil {
		return 0, fmt.Errorf("encrypting sequence number %d: %w", sequenceNumber, err)
	}

	return encrypted.Int64() + lowestCaseRef, nil
}

// SequenceOf inverts CaseRef. It exists to let tests prove the mapping is a
// bijection; business code never needs it.
func (g *CaseRefGenerator) SequenceOf(caseRef int64) (int64, error) {
	if caseRef < lowestCaseRef || caseRef > highestCaseRef {
		return 0, fmt.Errorf("%w: case ref %d", ErrSequenceOutOfDomain, caseRef)
	}

	decrypted, err := g.cipher.Decrypt(big.NewInt(caseRef - lowestCaseRef))
	if err != nil {
		return 0, fmt.Errorf("decrypting case ref %d: %w", caseRef, err)
	}

	return decrypted.Int64(), nil
}
