// Package bip32 builds master extended keys from a BIP39 seed and
// derives child private keys along a parsed HD path, wrapping
// btcsuite/btcutil/hdkeychain the way the
// Jasonyou1995/simple-eth-hd-wallet reference's newWallet/derivePrivateKey
// functions do.
package bip32

import (
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil/hdkeychain"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/secmem"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/wallet/hdpath"
)

// Master wraps the root extended key for one wallet. It is never
// persisted; it is reconstructed from the sealed BIP39 seed each time a
// derivation is needed and discarded immediately after.
type Master struct {
	key *hdkeychain.ExtendedKey
}

// NewMaster builds the master extended key from a 64-byte BIP39 seed.
func NewMaster(seed []byte) (*Master, error) {
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, taerr.Wrap(taerr.KindInternal, "derive master key", err)
	}
	return &Master{key: key}, nil
}

// Derive walks path from the master key, child by child, and returns the
// resulting secp256k1 private key sealed behind memguard. The
// intermediate extended keys are zeroized as soon as each child step
// completes.
func (m *Master) Derive(path hdpath.Path) (*secmem.Secret, error) {
	current := m.key
	for _, n := range path {
		child, err := current.Child(n)
		if current != m.key {
			current.Zero()
		}
		if err != nil {
			return nil, taerr.Wrap(taerr.KindBadParameters, "derive child key", err)
		}
		current = child
	}
	defer current.Zero()

	privKey, err := current.ECPrivKey()
	if err != nil {
		return nil, taerr.Wrap(taerr.KindInternal, "extract private key", err)
	}
	ecdsaKey := (*ecdsa.PrivateKey)(privKey)
	raw := ecdsaKey.D.Bytes()
	buf := make([]byte, 32)
	copy(buf[32-len(raw):], raw)
	secret := secmem.Seal(buf)
	secmem.Zero(buf)
	return secret, nil
}
