package ident_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusrm/caseprocessor/internal/ident"
)

func Test_BuildQid_ProducesFixedWidthIdWithCheckDigits(t *testing.T) {
	cases := []struct {
		questionnaireType int
		tranche           int
		uniqueNumber      int64
	}{
		{1, 1, 0},
		{1, 1, 1},
		{21, 2, 12345},
		{31, 1, 99_999_999_999},
		{71, 9, 42},
	}

	for _, tc := range cases {
		qid, err := ident.BuildQid(tc.questionnaireType, tc.tranche, tc.uniqueNumber)
		require.NoError(t, err)

		assert.Len(t, qid, 16)

		leading := qid[:14]
		checkDigits, err := strconv.Atoi(qid[14:])
		require.NoError(t, err)
		assert.Equal(t, ident.CheckDigits(leading), checkDigits)

		questionnaireType, err := strconv.Atoi(qid[:2])
		require.NoError(t, err)
		assert.Equal(t, tc.questionnaireType, questionnaireType)
	}
}

func Test_CheckDigits_DetectTransposedNeighbours(t *testing.T) {
	assert.NotEqual(t, ident.CheckDigits("01112345678901"), ident.CheckDigits("01112345678910"))
}

func Test_BuildQid_RejectsComponentsOutOfRange(t *testing.T) {
	_, err := ident.BuildQid(0, 1, 1)
	assert.ErrorIs(t, err, ident.ErrQidComponentOutOfRange)

	_, err = ident.BuildQid(100, 1, 1)
	assert.ErrorIs(t, err, ident.ErrQidComponentOutOfRange)

	_, err = ident.BuildQid(1, 10, 1)
	assert.ErrorIs(t, err, ident.ErrQidComponentOutOfRange)

	_, err = ident.BuildQid(1, 1, 100_000_000_000)
	assert.ErrorIs(t, err, ident.ErrQidComponentOutOfRange)
}

func Test_NewAccessCode_DrawsFromUnambiguousAlphabet(t *testing.T) {
	const alphabet = "abcdefghjkmnpqrstuvwxyz23456789"

	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code, err := ident.NewAccessCode()
		require.NoError(t, err)

		assert.Len(t, code, 16)

		for _, r := range code {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected character %q", r)
		}

		assert.False(t, seen[code], "access code %s repeated", code)
		seen[code] = true
	}
}
