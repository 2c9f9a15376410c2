package fpe_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusrm/caseprocessor/internal/ident/fpe"
)

func newTestCipher(t *testing.T) *fpe.Cipher {
	t.Helper()

	cipher, err := fpe.NewCipher(big.NewInt(89_999_998), []byte("test-key"), []byte("test-tweak"))
	require.NoError(t, err)

	return cipher
}

func Test_Cipher_RoundTrips(t *testing.T) {
	cipher := newTestCipher(t)

	inputs := []int64{0, 1, 2, 42, 1_000_000, 44_999_999, 89_999_996, 89_999_997}

	for _, input := range inputs {
		encrypted, err := cipher.Encrypt(big.NewInt(input))
		require.NoError(t, err)

		assert.True(t, encrypted.Sign() >= 0)
		assert.True(t, encrypted.Cmp(big.NewInt(89_999_998)) < 0)

		decrypted, err := cipher.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, input, decrypted.Int64())
	}
}

func Test_Cipher_IsDeterministic(t *testing.T) {
	first := newTestCipher(t)
	second := newTestCipher(t)

	for _, input := range []int64{7, 12345, 9_999_999} {
		a, err := first.Encrypt(big.NewInt(input))
		require.NoError(t, err)

		b, err := second.Encrypt(big.NewInt(input))
		require.NoError(t, err)

		assert.Equal(t, a, b)
	}
}

func Test_Cipher_IsInjectiveOnSample(t *testing.T) {
	cipher := newTestCipher(t)

	seen := make(map[int64]int64, 10_000)

	for input := int64(0); input < 10_000; input++ {
		encrypted, err := cipher.Encrypt(big.NewInt(input))
		require.NoError(t, err)

		previous, collision := seen[encrypted.Int64()]
		require.False(t, collision, "inputs %d and %d both map to %d", previous, input, encrypted.Int64())

		seen[encrypted.Int64()] = input
	}
}

func Test_Cipher_DifferentKeysProduceDifferentPermutations(t *testing.T) {
	modulus := big.NewInt(89_999_998)

	first, err := fpe.NewCipher(modulus, []byte("key-one"), []byte("tweak"))
	require.NoError(t, err)

	second, err := fpe.NewCipher(modulus, []byte("key-two"), []byte("tweak"))
	require.NoError(t, err)

	differs := false

	for input := int64(0); input < 100; input++ {
		a, encErr := first.Encrypt(big.NewInt(input))
		require.NoError(t, encErr)

		b, encErr := second.Encrypt(big.NewInt(input))
		require.NoError(t, encErr)

		if a.Cmp(b) != 0 {
			differs = true

			break
		}
	}

	assert.True(t, differs)
}

func Test_NewCipher_RejectsPrimeModulus(t *testing.T) {
	// 89 999 999 is prime, which is exactly why the case-ref domain is
	// shrunk by one before the cipher is built.
	_, err := fpe.NewCipher(big.NewInt(89_999_999), []byte("key"), []byte("tweak"))

	require.Error(t, err)
	assert.ErrorIs(t, err, fpe.ErrModulusNotFactorable)
}

func Test_Cipher_RejectsValueOutOfRange(t *testing.T) {
	cipher := newTestCipher(t)

	_, err := cipher.Encrypt(big.NewInt(89_999_998))
	assert.ErrorIs(t, err, fpe.ErrValueOutOfRange)

	_, err = cipher.Encrypt(big.NewInt(-1))
	assert.ErrorIs(t, err, fpe.ErrValueOutOfRange)
}
