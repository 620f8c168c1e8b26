// Package sealedstore persists per-wallet secrets to disk with AEAD
// confidentiality and integrity, grounded on the AES-256-GCM envelope
// pattern in ai-powered-p256-smart-wallet's pkg/crypto/crypto.go and the
// HKDF key derivation style used throughout the pack. A tamper or
// truncation on read always fails closed with an IntegrityError; the
// store never returns partial or stale bytes.
package sealedstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/secmem"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
)

const hkdfInfo = "airaccount/sealed-store/record-key/v1"

// Record is one wallet's sealed payload. The store only ever hands this
// out as a fully-validated, freshly decrypted struct; a tampered file
// never reaches the caller.
type Record struct {
	WalletID       string `json:"wallet_id"`
	Mnemonic       string `json:"mnemonic"`
	PrimaryAddress string `json:"primary_address"`
	CreatedAtUnix  int64  `json:"created_at_unix"`
}

// Store is an encrypted, MACed, on-disk key-value store keyed by
// wallet_id. Every mutating method is serialized behind a single mutex:
// the Sealed Store is the only shared mutable resource in the TA and has
// exactly one mutator at a time, per spec §9's concurrency model.
type Store struct {
	mu      sync.Mutex
	dir     string
	rootKey []byte // derived once from the master key passed to Open
}

// Open prepares the store directory and derives the per-record AEAD key
// from masterKey (in the TA, the factory seed read at Create) via HKDF.
// Only the derived key is kept in the store's own buffer; callers may
// zeroize their copy afterward.
func Open(dir string, masterKey []byte) (*Store, error) {
	if len(masterKey) == 0 {
		return nil, errors.New("sealedstore: master key is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("sealedstore: create directory: %w", err)
	}

	derived := make([]byte, 32)
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, derived); err != nil {
		return nil, fmt.Errorf("sealedstore: derive record key: %w", err)
	}

	return &Store{dir: dir, rootKey: derived}, nil
}

// Close zeroizes the store's in-memory key material. The store must not
// be used afterward.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	secmem.Zero(s.rootKey)
}

func (s *Store) path(walletID string) string {
	return filepath.Join(s.dir, walletID+".sealed")
}

// Put seals and persists rec, overwriting any prior record for the same
// wallet_id. The write is atomic: it lands in a temp file first, then is
// renamed into place, so a crash mid-write never leaves a half-written
// record that a later Get could misread as tampered.
func (s *Store) Put(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := json.Marshal(rec)
	if err != nil {
		return taerr.Wrap(taerr.KindInternal, "marshal sealed record", err)
	}

	sealed, err := s.seal(plaintext)
	if err != nil {
		return taerr.Wrap(taerr.KindInternal, "seal record", err)
	}

	tmp := s.path(rec.WalletID) + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return taerr.Wrap(taerr.KindInternal, "write sealed record", err)
	}
	if err := os.Rename(tmp, s.path(rec.WalletID)); err != nil {
		return taerr.Wrap(taerr.KindInternal, "commit sealed record", err)
	}
	return nil
}

// Get loads and opens the record for walletID. Any AEAD failure —
// truncation, corruption, or a wrong key — is reported as an
// IntegrityError rather than partial data.
func (s *Store) Get(walletID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(walletID))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, taerr.New(taerr.KindNotFound, "wallet not found")
	}
	if err != nil {
		return Record{}, taerr.Wrap(taerr.KindInternal, "read sealed record", err)
	}

	plaintext, err := s.open(raw)
	if err != nil {
		return Record{}, taerr.Wrap(taerr.KindIntegrityError, "sealed record failed integrity check", err)
	}

	var rec Record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return Record{}, taerr.Wrap(taerr.KindIntegrityError, "sealed record payload malformed", err)
	}
	return rec, nil
}

// Delete removes the record for walletID, overwriting its on-disk bytes
// with zeros before unlinking so no ciphertext remnant survives a
// filesystem that doesn't truncate in place. Deleting an id that was
// never sealed is reported as NotFound rather than a silent success.
func (s *Store) Delete(walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.path(walletID)
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return taerr.New(taerr.KindNotFound, "wallet not found")
	}
	if err != nil {
		return taerr.Wrap(taerr.KindInternal, "stat sealed record", err)
	}

	if f, ferr := os.OpenFile(p, os.O_WRONLY, 0o600); ferr == nil {
		zeros := make([]byte, info.Size())
		_, _ = f.WriteAt(zeros, 0)
		_ = f.Sync()
		_ = f.Close()
	}
	if err := os.Remove(p); err != nil {
		return taerr.Wrap(taerr.KindInternal, "remove sealed record", err)
	}
	return nil
}

// ListIDs returns every wallet_id currently sealed in the store.
func (s *Store) ListIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, taerr.Wrap(taerr.KindInternal, "list sealed store", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		const suffix = ".sealed"
		if !e.IsDir() && len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			ids = append(ids, name[:len(name)-len(suffix)])
		}
	}
	return ids, nil
}

func (s *Store) seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.rootKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.rootKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealedstore: ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
