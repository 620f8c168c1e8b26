// Package secmem carries the secure-memory discipline required by spec
// §4.5: any buffer holding entropy, a derived private key, a mnemonic, or
// a signing nonce is allocated from an allocator that zeroizes on release,
// forbids use-after-free by construction, and resists dead-store
// elimination. It wraps github.com/awnumar/memguard, the same library the
// teacher's SessionManager uses to seal session keys.
package secmem

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// Secret is an at-rest-encrypted buffer. It never exposes its bytes except
// through WithBytes, which opens it only for the duration of fn and
// destroys the plaintext copy before returning — the same "open
// momentarily" shape as SessionManager.Sign.
type Secret struct {
	enclave *memguard.Enclave
}

// Seal copies b into a memguard Enclave and zeroizes the caller's copy.
// The caller must not retain or reuse b after calling Seal.
func Seal(b []byte) *Secret {
	enclave := memguard.NewEnclave(b)
	memguard.WipeBytes(b)
	return &Secret{enclave: enclave}
}

// WithBytes opens the enclave into a locked buffer, invokes fn with the
// plaintext bytes, and destroys the locked buffer before returning —
// regardless of whether fn returns an error.
func (s *Secret) WithBytes(fn func(b []byte) error) error {
	if s == nil || s.enclave == nil {
		return errNilSecret
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Destroy drops the reference to the underlying enclave, after which
// WithBytes returns an error. Safe to call multiple times.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.enclave = nil
}

var errNilSecret = &nilSecretError{}

type nilSecretError struct{}

func (*nilSecretError) Error() string { return "secmem: secret is nil or already destroyed" }

// Zero overwrites b with zeroes in place, resisting compiler dead-store
// elimination via memguard's fence-backed wipe.
func Zero(b []byte) {
	memguard.WipeBytes(b)
}

// ConstantTimeEqual compares two secret-bearing buffers without branching
// on their contents, per spec §4.5's constant-time primitive requirement.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
