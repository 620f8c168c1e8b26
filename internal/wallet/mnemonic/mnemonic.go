// Package mnemonic implements BIP39 entropy-to-mnemonic and
// mnemonic-to-seed conversion for the Wallet Engine (spec §4.2), grounded
// on the tyler-smith/go-bip39 usage in the
// Jasonyou1995/simple-eth-hd-wallet reference implementation.
package mnemonic

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/secmem"
)

// EntropyBits is the BIP39 entropy size used for wallet creation,
// producing a 24-word mnemonic with standard checksum.
const EntropyBits = 256

// FromEntropy builds a BIP39 mnemonic (English wordlist) from exactly
// 32 bytes of entropy.
func FromEntropy(entropy []byte) (string, error) {
	if len(entropy)*8 != EntropyBits {
		return "", fmt.Errorf("mnemonic: entropy must be %d bits, got %d", EntropyBits, len(entropy)*8)
	}
	return bip39.NewMnemonic(entropy)
}

// Seed derives the 64-byte BIP39 seed from a mnemonic, passphrase-less,
// via the standard HMAC-SHA512 iteration count. The seed is sealed
// immediately since it can reconstruct every derived key.
func Seed(m string) (*secmem.Secret, error) {
	if !bip39.IsMnemonicValid(m) {
		return nil, fmt.Errorf("mnemonic: invalid mnemonic")
	}
	seed := bip39.NewSeed(m, "")
	return secmem.Seal(seed), nil
}
