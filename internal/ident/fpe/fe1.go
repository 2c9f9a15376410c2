// Package fpe implements the FE1 format-preserving encryption scheme: a keyed
// Feistel network that is a deterministic bijection over the integers
// [0, modulus). The modulus must be composite, since each Feistel round splits
// values across a two-factor decomposition of it.
package fpe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// Feistel networks are provably secure from three rounds up; fewer rounds leak
// structure between input and output.
const lowestSafeNumberOfRounds = 3

// Trial division bound used when splitting the modulus into two factors.
const smallPrimeBound = 1000

var (
	// ErrModulusNotFactorable is returned when the modulus cannot be split
	// into two non-trivial factors, i.e. it is prime or 1.
	ErrModulusNotFactorable = errors.New("modulus cannot be factored into two non-trivial factors")

	// ErrValueOutOfRange is returned when the value to encrypt or decrypt does
	// not lie in [0, modulus).
	ErrValueOutOfRange = errors.New("value must lie in [0, modulus)")
)

var (
	bigOne = big.NewInt(1)
)

// Cipher is an FE1 cipher fixed to one modulus, key and tweak.
// It is stateless after construction and safe for concurrent use.
type Cipher struct {
	modulus *big.Int
	first   *big.Int
	second  *big.Int
	macNT   []byte
	key     []byte
}

// NewCipher validates the modulus factorization and precomputes the keyed
// tweak digest. The key is used with HMAC-SHA256; the tweak binds the cipher
// to one deployment so equal keys over different tweaks produce unrelated
// permutations.
func NewCipher(modulus *big.Int, key, tweak []byte) (*Cipher, error) {
	if modulus == nil || modulus.Sign() <= 0 {
		return nil, ErrModulusNotFactorable
	}

	first, second, err := factor(modulus)
	if err != nil {
		return nil, err
	}

	c := &Cipher{
		modulus: new(big.Int).Set(modulus),
		first:   first,
		second:  second,
		key:     append([]byte(nil), key...),
	}
	c.macNT = c.tweakDigest(tweak)

	return c, nil
}

// Encrypt maps value to its ciphertext within [0, modulus).
// The mapping is a total bijection: distinct inputs never collide.
func (c *Cipher) Encrypt(value *big.Int) (*big.Int, error) {
	if !c.inRange(value) {
		return nil, ErrValueOutOfRange
	}

	x := new(big.Int).Set(value)
	left := new(big.Int)
	right := new(big.Int)

	for round := 0; round < lowestSafeNumberOfRounds; round++ {
		left.DivMod(x, c.second, right)

		w := c.roundFunction(round, right)
		w.Add(w, left)
		w.Mod(w, c.first)

		x.Mul(c.first, right)
		x.Add(x, w)
	}

	return x, nil
}

// Decrypt inverts Encrypt for the same modulus, key and tweak.
func (c *Cipher) Decrypt(value *big.Int) (*big.Int, error) {
	if !c.inRange(value) {
		return nil, ErrValueOutOfRange
	}

	x := new(big.Int).Set(value)
	w := new(big.Int)
	right := new(big.Int)

	for round := lowestSafeNumberOfRounds - 1; round >= 0; round-- {
		right.DivMod(x, c.first, w)

		left := c.roundFunction(round, right)
		left.Sub(w, left)
		left.Mod(left, c.first)

		x.Mul(c.second, left)
		x.Add(x, right)
	}

	return x, nil
}

func (c *Cipher) inRange(value *big.Int) bool {
	return value != nil && value.Sign() >= 0 && value.Cmp(c.modulus) < 0
}

// tweakDigest computes HMAC(key, len(modulus) || modulus || len(tweak) || tweak),
// folding the modulus and tweak into every round function input.
func (c *Cipher) tweakDigest(tweak []byte) []byte {
	mac := hmac.New(sha256.New, c.key)

	modulusBytes := c.modulus.Bytes()
	writeLengthPrefixed(mac, modulusBytes)
	writeLengthPrefixed(mac, tweak)

	return mac.Sum(nil)
}

// roundFunction is the Feistel one-way function:
// HMAC(key, macNT || round || len(value) || value) interpreted as a
// non-negative integer.
func (c *Cipher) roundFunction(round int, value *big.Int) *big.Int {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(c.macNT)

	var roundBytes [4]byte
	binary.BigEndian.PutUint32(roundBytes[:], uint32(round)) //nolint:gosec // round < lowestSafeNumberOfRounds
	mac.Write(roundBytes[:])

	writeLengthPrefixed(mac, value.Bytes())

	return new(big.Int).SetBytes(mac.Sum(nil))
}

func writeLengthPrefixed(mac interface{ Write([]byte) (int, error) }, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data))) //nolint:gosec // lengths are tiny
	mac.Write(length[:])
	mac.Write(data)
}

// factor splits the modulus into two non-trivial factors by trial division
// with small primes, keeping the two sides roughly balanced. Any cofactor left
// after trial division goes to the smaller side. A prime modulus cannot be
// split and is rejected.
func factor(modulus *big.Int) (*big.Int, *big.Int, error) {
	first := big.NewInt(1)
	second := big.NewInt(1)

	remainder := new(big.Int).Set(modulus)
	quotient := new(big.Int)
	mod := new(big.Int)

	for _, p := range smallPrimes() {
		prime := big.NewInt(p)

		for {
			quotient.DivMod(remainder, prime, mod)
			if mod.Sign() != 0 {
				break
			}

			side := smallerOf(first, second)
			side.Mul(side, prime)
			remainder.Set(quotient)
		}
	}

	if remainder.Cmp(bigOne) > 0 {
		smaller := smallerOf(first, second)
		smaller.Mul(smaller, remainder)
	}

	if first.Cmp(bigOne) == 0 || second.Cmp(bigOne) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrModulusNotFactorable, modulus.String())
	}

	return first, second, nil
}

func smallerOf(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}

	return b
}

// smallPrimes enumerates the primes below smallPrimeBound with a plain sieve.
func smallPrimes() []int64 {
	composite := make([]bool, smallPrimeBound)
	primes := make([]int64, 0, 168)

	for i := int64(2); i < smallPrimeBound; i++ {
		if composite[i] {
			continue
		}

		primes = append(primes, i)
		for j := i * i; j < smallPrimeBound; j += i {
			composite[j] = true
		}
	}

	return primes
}
