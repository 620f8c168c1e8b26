// Package entropy implements the Hybrid Entropy Unit (spec §4.3): it
// combines a device-unique factory seed with per-call TEE randomness so
// that neither source alone determines the resulting 32-byte master
// entropy. The mixing step follows the HKDF extract-and-expand pattern
// used by github.com/R3E-Network/service_layer's teesigner package for
// its own domain-separated key derivation.
package entropy

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/bits"

	"golang.org/x/crypto/hkdf"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/secmem"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
)

// Size is the length in bytes of master entropy and of its two inputs.
const Size = 32

// minHammingBits and maxHammingBits bound the acceptable bit-count of a
// tee_random sample, per spec §4.3's Hamming-weight sanity check.
const (
	minHammingBits = 64
	maxHammingBits = 192
)

// domainLabel is the constant domain-separation label mixed into every
// call, per spec §4.3.
const domainLabel = "airaccount/hybrid-entropy/v1"

// RandomSource supplies per-call TEE randomness. The production
// implementation reads the enclave RNG; tests may substitute a
// deterministic source.
type RandomSource interface {
	Read(p []byte) (int, error)
}

// CryptoRandSource adapts crypto/rand.Reader to RandomSource.
var CryptoRandSource RandomSource = rand.Reader

// Unit produces hybrid master entropy from a factory seed and the TEE RNG.
type Unit struct {
	rng RandomSource
}

// New creates a Unit reading from rng. Pass entropy.CryptoRandSource in
// production.
func New(rng RandomSource) *Unit {
	if rng == nil {
		rng = CryptoRandSource
	}
	return &Unit{rng: rng}
}

// Derive produces 32 bytes of master entropy from factorySeed and a fresh
// TEE-random sample, optionally binding userBinding into the mix. The
// factory seed is never returned or logged; only the mixed output flows
// upward, sealed immediately in a secmem.Secret.
func (u *Unit) Derive(factorySeed []byte, userBinding []byte) (*secmem.Secret, error) {
	if len(factorySeed) != Size {
		return nil, taerr.New(taerr.KindInternal, "factory seed must be 32 bytes")
	}

	teeRandom := make([]byte, Size)
	if _, err := io.ReadFull(u.rng, teeRandom); err != nil {
		return nil, taerr.Wrap(taerr.KindInternal, "read tee rng", err)
	}
	defer secmem.Zero(teeRandom)

	if err := checkQuality(teeRandom); err != nil {
		return nil, err
	}

	info := make([]byte, 0, len(domainLabel)+len(userBinding)+1)
	info = append(info, []byte(domainLabel)...)
	if len(userBinding) > 0 {
		info = append(info, 0)
		info = append(info, userBinding...)
	}

	reader := hkdf.New(sha256.New, append(append([]byte{}, factorySeed...), teeRandom...), []byte(domainLabel), info)
	out := make([]byte, Size)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, taerr.Wrap(taerr.KindInternal, "hkdf expand", err)
	}

	return secmem.Seal(out), nil
}

// checkQuality rejects a tee_random sample whose Hamming weight falls
// outside [minHammingBits, maxHammingBits], per spec §4.3.
func checkQuality(sample []byte) error {
	count := 0
	for _, b := range sample {
		count += bits.OnesCount8(b)
	}
	if count < minHammingBits || count > maxHammingBits {
		return taerr.New(taerr.KindEntropyQualityError,
			fmt.Sprintf("tee_random hamming weight %d outside [%d, %d]", count, minHammingBits, maxHammingBits))
	}
	return nil
}
