package mnemonic_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet/mnemonic"
)

func TestFromEntropyProducesValidMnemonic(t *testing.T) {
	entropy := make([]byte, 32)
	for i := range entropy {
		entropy[i] = byte(i)
	}

	m, err := mnemonic.FromEntropy(entropy)
	require.NoError(t, err)
	require.NotEmpty(t, m)

	words := 0
	for _, r := range m {
		if r == ' ' {
			words++
		}
	}
	require.Equal(t, 23, words, "a 256-bit entropy mnemonic has 24 words / 23 spaces")
}

func TestFromEntropyRejectsWrongSize(t *testing.T) {
	_, err := mnemonic.FromEntropy(make([]byte, 16))
	require.Error(t, err)
}

func TestFromEntropyIsDeterministic(t *testing.T) {
	entropy := make([]byte, 32)
	for i := range entropy {
		entropy[i] = 0x42
	}
	a, err := mnemonic.FromEntropy(entropy)
	require.NoError(t, err)
	b, err := mnemonic.FromEntropy(entropy)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSeedRoundTrip(t *testing.T) {
	entropy := make([]byte, 32)
	for i := range entropy {
		entropy[i] = byte(i * 3)
	}
	m, err := mnemonic.FromEntropy(entropy)
	require.NoError(t, err)

	seed, err := mnemonic.Seed(m)
	require.NoError(t, err)

	var got []byte
	require.NoError(t, seed.WithBytes(func(b []byte) error {
		got = append([]byte(nil), b...)
		return nil
	}))
	require.Len(t, got, 64)

	seedAgain, err := mnemonic.Seed(m)
	require.NoError(t, err)
	var gotAgain []byte
	require.NoError(t, seedAgain.WithBytes(func(b []byte) error {
		gotAgain = append([]byte(nil), b...)
		return nil
	}))
	require.Equal(t, got, gotAgain, "BIP39 seed derivation is deterministic for a fixed mnemonic")
}

func TestSeedRejectsInvalidMnemonic(t *testing.T) {
	_, err := mnemonic.Seed("not a real mnemonic phrase at all")
	require.Error(t, err)
}
